package webhook

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Luismorlan/pagemux/model"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessagingVariants(t *testing.T) {
	var entry Entry
	require.NoError(t, json.Unmarshal([]byte(`{"id":"100","messaging":[
		{"sender":{"id":"123"},"recipient":{"id":"100"},"timestamp":1700000000000,
		 "message":{"mid":"m1","text":"look","attachments":[{"type":"image","payload":{"url":"https://cdn/a.png"}}]}},
		{"sender":{"id":"123"},"recipient":{"id":"100"},"delivery":{"mids":["m0"],"watermark":1}},
		{"sender":{"id":"123"},"recipient":{"id":"100"},"read":{"watermark":2}},
		{"sender":{"id":"123"},"recipient":{"id":"100"},"postback":{"title":"Start"}}
	]}`), &entry))

	want := MessageEvent{
		Mid:         "m1",
		SenderId:    "123",
		RecipientId: "100",
		Text:        "look",
		Attachments: []model.Attachment{{Type: "image", Url: "https://cdn/a.png"}},
		SentAt:      time.UnixMilli(1700000000000).UTC(),
	}
	if diff := cmp.Diff(want, entry.Messaging[0].Decode()); diff != "" {
		t.Errorf("message event mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "123", want.ConversationId())
	assert.Equal(t, DeliveryEvent{Mids: []string{"m0"}}, entry.Messaging[1].Decode())
	assert.Equal(t, ReadEvent{Watermark: 2}, entry.Messaging[2].Decode())
	assert.Equal(t, UnsupportedMessagingEvent{Kind: "postback"}, entry.Messaging[3].Decode())
}

func TestEchoConversationIsRecipient(t *testing.T) {
	e := MessageEvent{SenderId: "100", RecipientId: "123", IsEcho: true}
	assert.Equal(t, "123", e.ConversationId())
}

func TestDecodeFeedChanges(t *testing.T) {
	photo := Change{Field: "feed", Value: json.RawMessage(`{"item":"photo","verb":"add","post_id":"100_1","photo":"https://cdn/p.jpg","created_time":"1700000000"}`)}
	decoded, err := photo.Decode()
	require.NoError(t, err)
	post, ok := decoded.(PostChange)
	require.True(t, ok)
	assert.Equal(t, "https://cdn/p.jpg", post.Picture)
	assert.Equal(t, []model.Attachment{{Type: "photo", Url: "https://cdn/p.jpg"}}, post.Attachments)
	assert.Equal(t, int64(1700000000), post.CreatedTime.Unix())
	assert.False(t, post.HasMessage)

	status := Change{Field: "feed", Value: json.RawMessage(`{"item":"status","verb":"edited","post_id":"100_1","message":""}`)}
	decoded, err = status.Decode()
	require.NoError(t, err)
	assert.True(t, decoded.(PostChange).HasMessage)

	reply := Change{Field: "feed", Value: json.RawMessage(`{"item":"reply","verb":"add","post_id":"100_1","comment_id":"c2","parent_id":"c1","from":{"id":"123","name":"Ann"}}`)}
	decoded, err = reply.Decode()
	require.NoError(t, err)
	comment := decoded.(CommentChange)
	assert.Equal(t, "c1", comment.ParentId)
	assert.Equal(t, "Ann", comment.FromName)

	topLevel := Change{Field: "feed", Value: json.RawMessage(`{"item":"comment","verb":"add","post_id":"100_1","comment_id":"c1","parent_id":"100_1"}`)}
	decoded, err = topLevel.Decode()
	require.NoError(t, err)
	assert.Empty(t, decoded.(CommentChange).ParentId)

	reaction := Change{Field: "feed", Value: json.RawMessage(`{"item":"reaction","verb":"add"}`)}
	decoded, err = reaction.Decode()
	require.NoError(t, err)
	assert.Equal(t, UnsupportedChange{Field: "feed", Item: "reaction"}, decoded)

	other := Change{Field: "ratings", Value: json.RawMessage(`{}`)}
	decoded, err = other.Decode()
	require.NoError(t, err)
	assert.Equal(t, UnsupportedChange{Field: "ratings"}, decoded)
}
