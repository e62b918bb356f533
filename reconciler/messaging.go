package reconciler

import (
	"context"
	"time"

	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/model"
)

// SendMessage sends text from the page to a Messenger user and stores the
// sent message. The page's webhook echo of the same message may land before
// or after this write, the upsert keeps a single row either way.
func (r *Reconciler) SendMessage(ctx context.Context, fanpage *model.Fanpage, recipientId string, text string) (*model.Message, error) {
	if recipientId == "" || text == "" {
		return nil, apperr.Validation("recipient and message are required")
	}
	if !fanpage.IsConnected {
		return nil, apperr.Validation("fanpage %s is disconnected", fanpage.PageId)
	}
	sent, err := r.platform.SendMessage(ctx, recipientId, text, fanpage.AccessToken)
	if err != nil {
		return nil, err
	}
	if sent.MessageId == "" {
		return nil, apperr.Upstream(0, "Facebook returned no message id", nil)
	}

	message := &model.Message{
		MessageId:      sent.MessageId,
		ConversationId: recipientId,
		FromId:         fanpage.PageId,
		Body:           text,
		Attachments:    model.EncodeAttachments(nil),
		CreatedTime:    time.Now().UTC(),
	}
	message.FanpageID = fanpage.Id
	message.FromName = fanpage.Name
	message.FromAvatar = fanpage.PictureUrl
	if _, err := r.store.UpsertMessage(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}
