package webhook

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Luismorlan/pagemux/model"
	"github.com/araddon/dateparse"
)

const pageObject = "page"

// Envelope is the body of every webhook delivery.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the events of one page. Messenger events and feed changes
// never share an entry in practice, but both are handled if they do.
type Entry struct {
	Id        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []Messaging `json:"messaging"`
	Changes   []Change    `json:"changes"`
}

type actorRef struct {
	Id string `json:"id"`
}

type rawAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		Url string `json:"url"`
	} `json:"payload"`
}

// Messaging is one raw Messenger event. Exactly one of Message, Delivery,
// Read or Postback is set. Decode turns it into a typed variant.
type Messaging struct {
	Sender    actorRef `json:"sender"`
	Recipient actorRef `json:"recipient"`
	Timestamp int64    `json:"timestamp"`
	Message   *struct {
		Mid         string          `json:"mid"`
		Text        string          `json:"text"`
		IsEcho      bool            `json:"is_echo"`
		Attachments []rawAttachment `json:"attachments"`
		ReplyTo     *struct {
			Mid string `json:"mid"`
		} `json:"reply_to"`
	} `json:"message"`
	Delivery *struct {
		Mids      []string `json:"mids"`
		Watermark int64    `json:"watermark"`
	} `json:"delivery"`
	Read *struct {
		Watermark int64 `json:"watermark"`
	} `json:"read"`
	Postback *struct {
		Title   string `json:"title"`
		Payload string `json:"payload"`
	} `json:"postback"`
}

// MessagingEvent is one of MessageEvent, DeliveryEvent, ReadEvent or
// UnsupportedMessagingEvent.
type MessagingEvent interface {
	isMessagingEvent()
}

type MessageEvent struct {
	Mid         string
	SenderId    string
	RecipientId string
	Text        string
	IsEcho      bool
	ReplyTo     string
	Attachments []model.Attachment
	SentAt      time.Time
}

type DeliveryEvent struct {
	Mids []string
}

type ReadEvent struct {
	Watermark int64
}

type UnsupportedMessagingEvent struct {
	Kind string
}

func (MessageEvent) isMessagingEvent()              {}
func (DeliveryEvent) isMessagingEvent()             {}
func (ReadEvent) isMessagingEvent()                 {}
func (UnsupportedMessagingEvent) isMessagingEvent() {}

// ConversationId keys the conversation by the Messenger user, which is the
// recipient for echoes of messages the page sent.
func (e MessageEvent) ConversationId() string {
	if e.IsEcho {
		return e.RecipientId
	}
	return e.SenderId
}

func (m Messaging) Decode() MessagingEvent {
	switch {
	case m.Message != nil && m.Message.Mid != "":
		event := MessageEvent{
			Mid:         m.Message.Mid,
			SenderId:    m.Sender.Id,
			RecipientId: m.Recipient.Id,
			Text:        m.Message.Text,
			IsEcho:      m.Message.IsEcho,
			Attachments: []model.Attachment{},
			SentAt:      time.UnixMilli(m.Timestamp).UTC(),
		}
		if m.Timestamp == 0 {
			event.SentAt = time.Now().UTC()
		}
		if m.Message.ReplyTo != nil {
			event.ReplyTo = m.Message.ReplyTo.Mid
		}
		for _, a := range m.Message.Attachments {
			event.Attachments = append(event.Attachments, model.Attachment{Type: a.Type, Url: a.Payload.Url})
		}
		return event
	case m.Delivery != nil:
		return DeliveryEvent{Mids: m.Delivery.Mids}
	case m.Read != nil:
		return ReadEvent{Watermark: m.Read.Watermark}
	case m.Postback != nil:
		return UnsupportedMessagingEvent{Kind: "postback"}
	default:
		return UnsupportedMessagingEvent{Kind: "unknown"}
	}
}

// Change is one raw feed change, e.g.
// {"field": "feed", "value": {"item": "comment", "verb": "add", ...}}.
type Change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// epochTime accepts the epoch seconds used by feed changes as well as the
// occasional formatted timestamp.
type epochTime struct {
	time.Time
}

func (t *epochTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.Unix(secs, 0).UTC()
		return nil
	}
	parsed, err := dateparse.ParseAny(s)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

type feedValue struct {
	Item        string    `json:"item"`
	Verb        string    `json:"verb"`
	PostId      string    `json:"post_id"`
	CommentId   string    `json:"comment_id"`
	ParentId    string    `json:"parent_id"`
	Message     *string   `json:"message"`
	Photo       string    `json:"photo"`
	Link        string    `json:"link"`
	CreatedTime epochTime `json:"created_time"`
	From        struct {
		Id   string `json:"id"`
		Name string `json:"name"`
	} `json:"from"`
}

func (v feedValue) message() string {
	if v.Message == nil {
		return ""
	}
	return *v.Message
}

const (
	VerbAdd    = "add"
	VerbEdited = "edited"
	VerbRemove = "remove"
	VerbHide   = "hide"
	VerbUnhide = "unhide"
)

// FeedChange is one of PostChange, CommentChange or UnsupportedChange.
type FeedChange interface {
	isFeedChange()
}

type PostChange struct {
	Item        string
	Verb        string
	PostId      string
	Message     string
	HasMessage  bool // false when the change carried no message key
	Picture     string
	Attachments []model.Attachment
	CreatedTime time.Time
}

type CommentChange struct {
	Verb        string
	PostId      string
	CommentId   string
	ParentId    string
	FromId      string
	FromName    string
	Message     string
	Attachments []model.Attachment
	CreatedTime time.Time
}

type UnsupportedChange struct {
	Field string
	Item  string
}

func (PostChange) isFeedChange()        {}
func (CommentChange) isFeedChange()     {}
func (UnsupportedChange) isFeedChange() {}

func (c Change) Decode() (FeedChange, error) {
	if c.Field != "feed" {
		return UnsupportedChange{Field: c.Field}, nil
	}
	var v feedValue
	if err := json.Unmarshal(c.Value, &v); err != nil {
		return nil, err
	}

	switch v.Item {
	case "post", "status", "photo", "video":
		change := PostChange{
			Item:        v.Item,
			Verb:        v.Verb,
			PostId:      v.PostId,
			Message:     v.message(),
			HasMessage:  v.Message != nil,
			Picture:     v.Photo,
			Attachments: []model.Attachment{},
			CreatedTime: v.CreatedTime.Time,
		}
		switch {
		case v.Photo != "":
			change.Attachments = append(change.Attachments, model.Attachment{Type: "photo", Url: v.Photo})
		case v.Item == "video" && v.Link != "":
			change.Attachments = append(change.Attachments, model.Attachment{Type: "video", Url: v.Link})
		}
		return change, nil
	case "comment", "reply":
		change := CommentChange{
			Verb:        v.Verb,
			PostId:      v.PostId,
			CommentId:   v.CommentId,
			FromId:      v.From.Id,
			FromName:    v.From.Name,
			Message:     v.message(),
			Attachments: []model.Attachment{},
			CreatedTime: v.CreatedTime.Time,
		}
		// Top-level comments carry the post id as parent.
		if v.ParentId != v.PostId {
			change.ParentId = v.ParentId
		}
		if v.Photo != "" {
			change.Attachments = append(change.Attachments, model.Attachment{Type: "photo", Url: v.Photo})
		}
		return change, nil
	default:
		return UnsupportedChange{Field: c.Field, Item: v.Item}, nil
	}
}
