package facebook

import (
	"strings"
	"time"

	"github.com/Luismorlan/pagemux/model"
	"github.com/araddon/dateparse"
)

// Time decodes Graph timestamps such as "2024-03-01T10:00:00+0000", which
// encoding/json's RFC 3339 parser rejects.
type Time struct {
	time.Time
}

func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := dateparse.ParseAny(s)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

type Actor struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

type Picture struct {
	Data struct {
		Url string `json:"url"`
	} `json:"data"`
}

type Page struct {
	Id          string  `json:"id"`
	Name        string  `json:"name"`
	AccessToken string  `json:"access_token"`
	Category    string  `json:"category"`
	Picture     Picture `json:"picture"`
}

// Token is a long-lived user credential returned by the token exchange.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Attachment covers the shapes used by post, comment and message
// attachments. Only one of the url fields is set depending on the source.
type Attachment struct {
	Type     string `json:"type"`
	Url      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileUrl  string `json:"file_url"`
	Media    *struct {
		Image struct {
			Src string `json:"src"`
		} `json:"image"`
	} `json:"media"`
	ImageData *struct {
		Url string `json:"url"`
	} `json:"image_data"`
}

func (a Attachment) ToModel() model.Attachment {
	res := model.Attachment{Type: a.Type, Url: a.Url}
	if res.Type == "" && a.MimeType != "" {
		res.Type = strings.SplitN(a.MimeType, "/", 2)[0]
	}
	switch {
	case a.Media != nil && a.Media.Image.Src != "":
		res.Url = a.Media.Image.Src
	case a.ImageData != nil && a.ImageData.Url != "":
		res.Url = a.ImageData.Url
	case res.Url == "" && a.FileUrl != "":
		res.Url = a.FileUrl
	}
	return res
}

type AttachmentList struct {
	Data []Attachment `json:"data"`
}

func (l AttachmentList) ToModel() []model.Attachment {
	res := []model.Attachment{}
	for _, a := range l.Data {
		res = append(res, a.ToModel())
	}
	return res
}

type Summary struct {
	TotalCount int `json:"total_count"`
}

type Post struct {
	Id          string         `json:"id"`
	Message     string         `json:"message"`
	FullPicture string         `json:"full_picture"`
	Attachments AttachmentList `json:"attachments"`
	CreatedTime Time           `json:"created_time"`
	UpdatedTime Time           `json:"updated_time"`
	Likes       struct {
		Summary Summary `json:"summary"`
	} `json:"likes"`
	Shares struct {
		Count int `json:"count"`
	} `json:"shares"`
	Comments struct {
		Summary Summary   `json:"summary"`
		Data    []Comment `json:"data"`
	} `json:"comments"`
}

type Comment struct {
	Id          string      `json:"id"`
	From        Actor       `json:"from"`
	Message     string      `json:"message"`
	Attachment  *Attachment `json:"attachment"`
	CreatedTime Time        `json:"created_time"`
	IsHidden    bool        `json:"is_hidden"`
	Parent      *struct {
		Id string `json:"id"`
	} `json:"parent"`
}

func (c Comment) ParentId() string {
	if c.Parent == nil {
		return ""
	}
	return c.Parent.Id
}

func (c Comment) AttachmentsToModel() []model.Attachment {
	if c.Attachment == nil {
		return []model.Attachment{}
	}
	return []model.Attachment{c.Attachment.ToModel()}
}

type Message struct {
	Id          string         `json:"id"`
	Message     string         `json:"message"`
	From        Actor          `json:"from"`
	Attachments AttachmentList `json:"attachments"`
	CreatedTime Time           `json:"created_time"`
}

type Conversation struct {
	Id           string `json:"id"`
	Participants struct {
		Data []Actor `json:"data"`
	} `json:"participants"`
	Messages struct {
		Data []Message `json:"data"`
	} `json:"messages"`
}

// Counterpart is the participant that is not the page. Messenger
// conversations are keyed by that id locally so webhook deliveries and
// pulled conversations land in the same scope. Falls back to the Graph
// conversation id when participants were not returned.
func (c Conversation) Counterpart(pageId string) string {
	for _, p := range c.Participants.Data {
		if p.Id != "" && p.Id != pageId {
			return p.Id
		}
	}
	return c.Id
}

type SendResult struct {
	RecipientId string `json:"recipient_id"`
	MessageId   string `json:"message_id"`
}

type listResponse[T any] struct {
	Data []T `json:"data"`
}

type idResponse struct {
	Id string `json:"id"`
}

type successResponse struct {
	Success bool `json:"success"`
}
