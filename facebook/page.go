package facebook

import (
	"context"
	"net/url"

	"github.com/Luismorlan/pagemux/apperr"
)

const pageFields = "id,name,access_token,category,picture"

// GetPageDetails reads page metadata and the page credential using the
// owner's user credential.
func (c *Client) GetPageDetails(ctx context.Context, pageId string, userToken string) (*Page, error) {
	var page Page
	err := c.get(ctx, pageId, userToken, url.Values{"fields": {pageFields}}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetPageAccessToken(ctx context.Context, pageId string, userToken string) (string, error) {
	var page Page
	if err := c.get(ctx, pageId, userToken, url.Values{"fields": {"access_token"}}, &page); err != nil {
		return "", err
	}
	if page.AccessToken == "" {
		return "", apperr.Upstream(0, "Facebook returned no page access token", nil)
	}
	return page.AccessToken, nil
}

// ExchangeUserToken trades a user credential for a new long-lived one.
func (c *Client) ExchangeUserToken(ctx context.Context, userToken string) (*Token, error) {
	params := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {c.appID},
		"client_secret":     {c.appSecret},
		"fb_exchange_token": {userToken},
	}
	var token Token
	if err := c.get(ctx, "oauth/access_token", "", params, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, apperr.Upstream(0, "Facebook returned no access token", nil)
	}
	return &token, nil
}
