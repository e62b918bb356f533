package facebook

import (
	"context"
	"net/url"
)

const conversationFields = "participants,messages{id,message,attachments,from,created_time}"

func (c *Client) ListConversations(ctx context.Context, pageId string, token string) ([]Conversation, error) {
	var res listResponse[Conversation]
	params := url.Values{"fields": {conversationFields}, "limit": {limitParam(c.pageSize)}}
	if err := c.get(ctx, pageId+"/conversations", token, params, &res); err != nil {
		return nil, err
	}
	return res.Data, nil
}

// ConversationWith returns the messages exchanged between the page and a
// single Messenger user, newest first. Empty when they never talked.
func (c *Client) ConversationWith(ctx context.Context, pageId string, userId string, token string) ([]Message, error) {
	var res listResponse[Conversation]
	params := url.Values{
		"fields":  {conversationFields},
		"user_id": {userId},
		"limit":   {limitParam(c.pageSize)},
	}
	if err := c.get(ctx, pageId+"/conversations", token, params, &res); err != nil {
		return nil, err
	}
	messages := []Message{}
	for _, conversation := range res.Data {
		messages = append(messages, conversation.Messages.Data...)
	}
	return messages, nil
}

func (c *Client) SendMessage(ctx context.Context, recipientId string, text string, token string) (*SendResult, error) {
	body := map[string]interface{}{
		"recipient":      map[string]string{"id": recipientId},
		"message":        map[string]string{"text": text},
		"messaging_type": "RESPONSE",
	}
	var res SendResult
	if err := c.post(ctx, "me/messages", token, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
