package engine

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
)

func NewEventBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            100,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewStdLogger(false, false),
	)
}

// FanpageChanged is the payload of TopicFanpageChanged.
type FanpageChanged struct {
	PageId string `json:"pageId"`
}

// FanpagePublisher puts fanpage changes on the bus.
type FanpagePublisher struct {
	bus message.Publisher
}

func NewFanpagePublisher(bus message.Publisher) *FanpagePublisher {
	return &FanpagePublisher{bus: bus}
}

func (p *FanpagePublisher) PublishFanpageChanged(ctx context.Context, pageId string) error {
	payload, err := json.Marshal(FanpageChanged{PageId: pageId})
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return errors.Wrap(p.bus.Publish(TopicFanpageChanged, msg), "fail to publish fanpage change")
}

func DecodeFanpageChanged(msg *message.Message) (FanpageChanged, error) {
	var changed FanpageChanged
	err := json.Unmarshal(msg.Payload, &changed)
	return changed, errors.Wrap(err, "fail to decode fanpage change")
}
