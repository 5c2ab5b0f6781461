package http

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-stomp/stomp/v3/frame"

	"github.com/vovakirdan/potchat/internal/core"
	"github.com/vovakirdan/potchat/internal/proto"
	"github.com/vovakirdan/potchat/internal/store"
	"github.com/vovakirdan/potchat/internal/utils"
)

// sendToCommand maps a SEND frame to a publish command. sender is the authenticated nickname,
// or empty when the connection is anonymous and the payload's sender is trusted.
func sendToCommand(f *frame.Frame, sender string) (*core.Command, error) {
	dest := f.Header.Get(frame.Destination)
	payload, err := proto.DecodeChat(f.Body)
	if err != nil {
		return nil, err
	}

	room := string(payload.PotID)
	if topicRoom, ok := proto.RoomFromTopic(dest); ok {
		room = topicRoom
	} else if dest != proto.PublishDestination {
		return nil, fmt.Errorf("unknown destination %q", dest)
	}
	if strings.TrimSpace(room) == "" {
		return nil, fmt.Errorf("potId is required")
	}

	from := payload.Sender
	if sender != "" {
		from = sender
	}

	return &core.Command{
		Kind: core.CommandPublish,
		Room: room,
		Message: core.Message{
			Kind: strings.ToUpper(strings.TrimSpace(payload.Type)),
			From: from,
			Text: payload.Message,
		},
	}, nil
}

// messageFrame renders a room message for the subscription subID.
func messageFrame(subID string, msg core.Message) (*frame.Frame, error) {
	body, err := json.Marshal(proto.ChatPayload{
		Type:    msg.Kind,
		PotID:   proto.PotID(msg.Room),
		Sender:  msg.From,
		Message: msg.Text,
		SentAt:  proto.FormatTime(msg.CreatedAt),
	})
	if err != nil {
		return nil, err
	}

	messageID := utils.NewID()
	if msg.ID != 0 {
		messageID = fmt.Sprintf("%d", msg.ID)
	}

	f := frame.New(frame.MESSAGE,
		frame.Destination, proto.Topic(msg.Room),
		frame.Subscription, subID,
		frame.MessageId, messageID,
		frame.ContentType, proto.ContentTypeJSON,
	)
	f.Body = body
	return f, nil
}

func errorFrame(message, detail string) *frame.Frame {
	f := frame.New(frame.ERROR, frame.Message, message)
	if detail != "" {
		f.Header.Set(frame.ContentType, "text/plain")
		f.Body = []byte(detail)
	}
	return f
}

func historyRecords(msgs []*store.Message) []proto.HistoryRecord {
	records := make([]proto.HistoryRecord, 0, len(msgs))
	for _, m := range msgs {
		records = append(records, proto.HistoryRecord{
			Sender:  m.Sender,
			Message: m.Body,
			SentAt:  proto.FormatTime(m.CreatedAt),
			Type:    m.Kind,
		})
	}
	return records
}
