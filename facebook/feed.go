package facebook

import (
	"context"
	"net/url"
)

const (
	postFields    = "id,message,full_picture,attachments,created_time,updated_time,likes.summary(true),shares,comments.summary(true)"
	commentFields = "id,from,message,attachment,created_time,is_hidden,parent{id}"
)

// ListPosts returns the most recent page of posts of a page.
func (c *Client) ListPosts(ctx context.Context, pageId string, token string) ([]Post, error) {
	var res listResponse[Post]
	params := url.Values{"fields": {postFields}, "limit": {limitParam(c.pageSize)}}
	if err := c.get(ctx, pageId+"/posts", token, params, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// ListFeedComments returns feed items with their embedded comments.
func (c *Client) ListFeedComments(ctx context.Context, pageId string, token string) ([]Post, error) {
	var res listResponse[Post]
	params := url.Values{
		"fields": {"id,comments{" + commentFields + "}"},
		"limit":  {limitParam(c.pageSize)},
	}
	if err := c.get(ctx, pageId+"/feed", token, params, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// ListPostComments returns the comments and replies of a single post as a
// flat stream.
func (c *Client) ListPostComments(ctx context.Context, postId string, token string) ([]Comment, error) {
	var res listResponse[Comment]
	params := url.Values{
		"fields": {commentFields},
		"filter": {"stream"},
		"limit":  {limitParam(c.pageSize)},
	}
	if err := c.get(ctx, postId+"/comments", token, params, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (c *Client) CreatePost(ctx context.Context, pageId string, message string, token string) (string, error) {
	var res idResponse
	if err := c.post(ctx, pageId+"/feed", token, map[string]string{"message": message}, &res); err != nil {
		return "", err
	}
	return res.Id, nil
}

func (c *Client) UpdatePost(ctx context.Context, postId string, message string, token string) error {
	return c.post(ctx, postId, token, map[string]string{"message": message}, &successResponse{})
}

func (c *Client) DeletePost(ctx context.Context, postId string, token string) error {
	return c.delete(ctx, postId, token, &successResponse{})
}

// ReplyToComment posts a reply as the page and returns the new comment id.
func (c *Client) ReplyToComment(ctx context.Context, commentId string, message string, token string) (string, error) {
	var res idResponse
	if err := c.post(ctx, commentId+"/comments", token, map[string]string{"message": message}, &res); err != nil {
		return "", err
	}
	return res.Id, nil
}

func (c *Client) SetCommentHidden(ctx context.Context, commentId string, hidden bool, token string) error {
	return c.post(ctx, commentId, token, map[string]bool{"is_hidden": hidden}, &successResponse{})
}
