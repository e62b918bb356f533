package model

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Attachment is a media reference on a post, comment or message, e.g.
// {"type": "photo", "url": "https://..."}.
type Attachment struct {
	Type string `json:"type"`
	Url  string `json:"url"`
}

// EncodeAttachments serializes attachments into a json column value. An empty
// list is stored as "[]" so reads never have to special case null.
func EncodeAttachments(attachments []Attachment) datatypes.JSON {
	if len(attachments) == 0 {
		return datatypes.JSON("[]")
	}
	raw, err := json.Marshal(attachments)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(raw)
}

func DecodeAttachments(raw datatypes.JSON) []Attachment {
	res := []Attachment{}
	if len(raw) == 0 {
		return res
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return []Attachment{}
	}
	return res
}
