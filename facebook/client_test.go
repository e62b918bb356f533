package facebook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{BaseURL: server.URL, AppID: "app", AppSecret: "secret"})
}

func TestGetPageDetails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/100", r.URL.Path)
		assert.Equal(t, "user-token", r.URL.Query().Get("access_token"))
		assert.Equal(t, pageFields, r.URL.Query().Get("fields"))
		w.Write([]byte(`{"id":"100","name":"Shop","access_token":"page-token","category":"Retail","picture":{"data":{"url":"https://cdn/p.jpg"}}}`))
	})

	page, err := client.GetPageDetails(context.Background(), "100", "user-token")
	require.NoError(t, err)
	assert.Equal(t, "Shop", page.Name)
	assert.Equal(t, "page-token", page.AccessToken)
	assert.Equal(t, "https://cdn/p.jpg", page.Picture.Data.Url)
}

func TestUpstreamErrorCarriesStatusAndMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid OAuth access token.","type":"OAuthException","code":190}}`))
	})

	_, err := client.ListPosts(context.Background(), "100", "bad")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindUpstream, e.Kind)
	assert.Equal(t, http.StatusBadRequest, e.Status)
	assert.Equal(t, "Invalid OAuth access token.", e.Message)
}

func TestUpstreamErrorWithoutBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := client.DeletePost(context.Background(), "100_1", "token")
	assert.Equal(t, http.StatusServiceUnavailable, apperr.HTTPStatus(err))
	assert.Equal(t, defaultErrorMessage, apperr.PublicMessage(err))
}

func TestListPostsDecodesCountersAndTimes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/100/posts", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"data":[{
			"id":"100_1",
			"message":"hello",
			"created_time":"2024-03-01T10:00:00+0000",
			"updated_time":"2024-03-02T10:00:00+0000",
			"attachments":{"data":[{"type":"photo","media":{"image":{"src":"https://cdn/a.jpg"}}}]},
			"likes":{"summary":{"total_count":4}},
			"shares":{"count":2},
			"comments":{"summary":{"total_count":9}}
		}]}`))
	})

	posts, err := client.ListPosts(context.Background(), "100", "token")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	post := posts[0]
	assert.Equal(t, 4, post.Likes.Summary.TotalCount)
	assert.Equal(t, 2, post.Shares.Count)
	assert.Equal(t, 9, post.Comments.Summary.TotalCount)
	assert.True(t, post.CreatedTime.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, []model.Attachment{{Type: "photo", Url: "https://cdn/a.jpg"}}, post.Attachments.ToModel())
}

func TestListPostComments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/100_1/comments", r.URL.Path)
		w.Write([]byte(`{"data":[
			{"id":"c1","from":{"id":"123","name":"Ann"},"message":"nice","created_time":"2024-03-01T10:00:00+0000"},
			{"id":"c2","from":{"id":"100","name":"Shop"},"message":"thanks","created_time":"2024-03-01T11:00:00+0000","parent":{"id":"c1"}}
		]}`))
	})

	comments, err := client.ListPostComments(context.Background(), "100_1", "token")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "", comments[0].ParentId())
	assert.Equal(t, "c1", comments[1].ParentId())
	assert.Equal(t, []model.Attachment{}, comments[0].AttachmentsToModel())
}

func TestConversationCounterpart(t *testing.T) {
	var c Conversation
	require.NoError(t, json.Unmarshal([]byte(`{"id":"t_1","participants":{"data":[{"id":"100"},{"id":"123"}]}}`), &c))
	assert.Equal(t, "123", c.Counterpart("100"))

	c = Conversation{Id: "t_2"}
	assert.Equal(t, "t_2", c.Counterpart("100"))
}

func TestSendMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/me/messages", r.URL.Path)
		assert.Equal(t, "page-token", r.URL.Query().Get("access_token"))
		var body map[string]map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "123", body["recipient"]["id"])
		assert.Equal(t, "hi", body["message"]["text"])
		w.Write([]byte(`{"recipient_id":"123","message_id":"m_9"}`))
	})

	res, err := client.SendMessage(context.Background(), "123", "hi", "page-token")
	require.NoError(t, err)
	assert.Equal(t, "m_9", res.MessageId)
}

func TestExchangeUserToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/oauth/access_token", r.URL.Path)
		assert.Equal(t, "fb_exchange_token", q.Get("grant_type"))
		assert.Equal(t, "app", q.Get("client_id"))
		assert.Equal(t, "secret", q.Get("client_secret"))
		assert.Equal(t, "old", q.Get("fb_exchange_token"))
		assert.Empty(t, q.Get("access_token"))
		w.Write([]byte(`{"access_token":"new","token_type":"bearer","expires_in":5183944}`))
	})

	token, err := client.ExchangeUserToken(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, "new", token.AccessToken)
}

func TestSetCommentHidden(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/c1", r.URL.Path)
		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body["is_hidden"])
		w.Write([]byte(`{"success":true}`))
	})
	require.NoError(t, client.SetCommentHidden(context.Background(), "c1", true, "token"))
}

func TestTimeAcceptsEmpty(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"id":"m1","created_time":""}`), &m))
	assert.True(t, m.CreatedTime.IsZero())
}

func TestClientTimeoutIsUpstreamError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })
	client := NewClient(ClientConfig{BaseURL: server.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := client.ListPosts(context.Background(), "100", "token")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, apperr.IsKind(err, apperr.KindUpstream))
	assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(err))
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(ClientConfig{})
	assert.Equal(t, defaultTimeout, client.client.Timeout)
	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Equal(t, DefaultPageSize, client.PageSize())
}
