// Package facebook wraps the subset of the Graph API the dashboard needs.
// Calls are single attempts: a non-2xx response becomes an upstream error
// carrying the remote status and message, and the caller decides what to do.
package facebook

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Luismorlan/pagemux/apperr"
	. "github.com/Luismorlan/pagemux/utils/log"
	"github.com/pkg/errors"
)

const (
	DefaultBaseURL  = "https://graph.facebook.com/v23.0"
	DefaultPageSize = 100

	defaultTimeout = 30 * time.Second
	// Used when the error body carries no message.
	defaultErrorMessage = "Facebook request failed"
)

type ClientConfig struct {
	BaseURL   string
	AppID     string
	AppSecret string
	PageSize  int
	Timeout   time.Duration
}

type Client struct {
	baseURL   string
	appID     string
	appSecret string
	pageSize  int

	client *http.Client
}

func NewClient(c ClientConfig) *Client {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(c.BaseURL, "/"),
		appID:     c.AppID,
		appSecret: c.AppSecret,
		pageSize:  c.PageSize,
		client:    &http.Client{Timeout: c.Timeout},
	}
}

func (c *Client) PageSize() int {
	return c.pageSize
}

// graphError is the error envelope returned by the Graph API, e.g.
// {"error": {"message": "Invalid OAuth access token.", "type": "OAuthException", "code": 190}}
type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (c *Client) get(ctx context.Context, path string, token string, params url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, token, params, nil, out)
}

func (c *Client) post(ctx context.Context, path string, token string, body interface{}, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, token, nil, body, out)
}

func (c *Client) delete(ctx context.Context, path string, token string, out interface{}) error {
	return c.do(ctx, http.MethodDelete, path, token, nil, nil, out)
}

// do sends one request. The credential always travels as the access_token
// query parameter.
func (c *Client) do(ctx context.Context, method, path, token string, params url.Values, body interface{}, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	if token != "" {
		params.Set("access_token", token)
	}
	uri := c.baseURL + "/" + strings.TrimLeft(path, "/") + "?" + params.Encode()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "fail to encode request body")
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, reader)
	if err != nil {
		return errors.Wrap(err, "fail to build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return apperr.Upstream(0, defaultErrorMessage, err)
	}
	defer res.Body.Close()

	raw, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return apperr.Upstream(res.StatusCode, defaultErrorMessage, err)
	}
	if isNon2xx(res) {
		return upstreamError(method, path, res.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Upstream(http.StatusBadGateway, "unexpected Facebook response", err)
	}
	return nil
}

func isNon2xx(res *http.Response) bool {
	return res.StatusCode < 200 || res.StatusCode >= 300
}

func upstreamError(method, path string, status int, body []byte) error {
	message := defaultErrorMessage
	var envelope graphError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}
	Log.WithFields(map[string]interface{}{
		"method": method,
		"path":   path,
		"status": status,
		"code":   envelope.Error.Code,
	}).Errorln("non-2xx Facebook response: ", string(body))
	return apperr.Upstream(status, message, nil)
}

func limitParam(n int) string {
	return strconv.Itoa(n)
}
