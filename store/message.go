package store

import (
	"context"

	"github.com/Luismorlan/pagemux/apperr"
	"github.com/Luismorlan/pagemux/model"
	"github.com/pkg/errors"
)

// UpsertMessage inserts the message or overwrites the body and attachments of
// the existing row with the same MessageId. Messages sent from the dashboard
// race with their own webhook echo, whichever lands first creates the row.
func (s *Store) UpsertMessage(ctx context.Context, message *model.Message) (bool, error) {
	message.Id = NewId()
	return insertOrOverwrite(ctx, s.db, message, "message_id", message.MessageId, map[string]interface{}{
		"body":        message.Body,
		"attachments": message.Attachments,
	})
}

func (s *Store) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	return first[model.Message](ctx, s.db, "message", "id = ?", id)
}

func (s *Store) ListMessagesByConversation(ctx context.Context, fanpageId string, conversationId string, offset, limit int) (Page[model.Message], error) {
	return listPage[model.Message](ctx, s.db, "created_time desc, id asc", offset, limit,
		"fanpage_id = ? AND conversation_id = ?", fanpageId, conversationId)
}

func (s *Store) SetMessageFollowed(ctx context.Context, id string, followed bool) (*model.Message, error) {
	res := s.db.WithContext(ctx).Model(&model.Message{}).Where("id = ?", id).Update("followed", followed)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "fail to update message")
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("message not found")
	}
	return s.GetMessage(ctx, id)
}
