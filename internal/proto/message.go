package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	// TopicPrefix is the STOMP destination prefix of pot chat topics.
	TopicPrefix = "/topic/pots/"
	// PublishDestination receives chat messages published by clients.
	PublishDestination = "/app/chat/message"

	// HistoryPathFormat is the REST path of a pot's chat history; %s is the pot id.
	HistoryPathFormat = "/api/pots/%s/chat/messages"
	// CurrentUserPath returns the profile of the token holder.
	CurrentUserPath = "/api/users/me"

	TypeEnter = "ENTER"
	TypeTalk  = "TALK"

	ContentTypeJSON = "application/json"
)

// Topic returns the subscription destination of a pot chat room.
func Topic(roomID string) string {
	return TopicPrefix + roomID
}

// RoomFromTopic extracts the pot id from a topic destination.
func RoomFromTopic(dest string) (string, bool) {
	room, ok := strings.CutPrefix(dest, TopicPrefix)
	if !ok || room == "" || strings.Contains(room, "/") {
		return "", false
	}
	return room, true
}

// HistoryPath returns the escaped history endpoint path for roomID.
func HistoryPath(roomID string) string {
	return fmt.Sprintf(HistoryPathFormat, url.PathEscape(roomID))
}

// ChatPayload is the JSON body of a live chat frame in both directions.
type ChatPayload struct {
	Type    string `json:"type"`
	PotID   PotID  `json:"potId"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
	SentAt  string `json:"sentAt,omitempty"`
}

// HistoryRecord is one element of the history endpoint response.
type HistoryRecord struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	SentAt  string `json:"sentAt"`
	Type    string `json:"type,omitempty"`
}

// UserProfile is returned by the current-user endpoint.
type UserProfile struct {
	Nickname string `json:"nickname"`
	Email    string `json:"email,omitempty"`
}

// ErrorResponse is the body of non-2xx REST responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PotID is a pot identifier that is accepted as a JSON string or number and always encoded as a string.
type PotID string

// UnmarshalJSON accepts both "42" and 42.
func (p *PotID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PotID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("pot id: %w", err)
	}
	*p = PotID(n.String())
	return nil
}

// DecodeChat parses a live frame body.
func DecodeChat(body []byte) (ChatPayload, error) {
	var p ChatPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return ChatPayload{}, fmt.Errorf("decode chat payload: %w", err)
	}
	return p, nil
}
