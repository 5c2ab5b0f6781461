package stomp

import (
	"time"

	"github.com/vovakirdan/potchat/internal/chat"
	"github.com/vovakirdan/potchat/internal/proto"
)

// decodeMessage maps a live frame body to a chat message. A missing sentAt stays zero and is
// stamped with the delivery time by the session.
func decodeMessage(body []byte, loc *time.Location) (chat.Message, error) {
	p, err := proto.DecodeChat(body)
	if err != nil {
		return chat.Message{}, err
	}
	sentAt, err := proto.ParseTime(p.SentAt, loc)
	if err != nil {
		return chat.Message{}, err
	}
	return chat.Message{
		Kind:   chat.ParseKind(p.Type),
		RoomID: string(p.PotID),
		Sender: p.Sender,
		Body:   p.Message,
		SentAt: sentAt,
		Status: chat.StatusConfirmed,
	}, nil
}
