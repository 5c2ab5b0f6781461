package proto

import (
	"testing"
	"time"
)

func TestPotIDAcceptsStringAndNumber(t *testing.T) {
	for _, body := range []string{
		`{"type":"TALK","potId":"42","sender":"bob","message":"hi"}`,
		`{"type":"TALK","potId":42,"sender":"bob","message":"hi"}`,
	} {
		p, err := DecodeChat([]byte(body))
		if err != nil {
			t.Fatalf("decode %s: %v", body, err)
		}
		if p.PotID != "42" {
			t.Fatalf("potId = %q, want 42", p.PotID)
		}
	}

	if _, err := DecodeChat([]byte(`{"potId":{}}`)); err == nil {
		t.Fatalf("expected error for object potId")
	}
}

func TestRoomFromTopic(t *testing.T) {
	if room, ok := RoomFromTopic(Topic("R42")); !ok || room != "R42" {
		t.Fatalf("RoomFromTopic = %q, %v", room, ok)
	}
	for _, dest := range []string{"/topic/pots/", "/topic/other/1", "/topic/pots/1/x"} {
		if _, ok := RoomFromTopic(dest); ok {
			t.Fatalf("RoomFromTopic(%q) should fail", dest)
		}
	}
}

func TestParseTime(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)

	got, err := ParseTime("2025-09-08T19:00:00Z", loc)
	if err != nil || !got.Equal(time.Date(2025, 9, 8, 19, 0, 0, 0, time.UTC)) {
		t.Fatalf("rfc3339: %v %v", got, err)
	}

	got, err = ParseTime("2025-09-08T19:00:00.123456", loc)
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	want := time.Date(2025, 9, 8, 19, 0, 0, 123456000, loc)
	if !got.Equal(want) {
		t.Fatalf("local = %v, want %v", got, want)
	}

	got, err = ParseTime("", loc)
	if err != nil || !got.IsZero() {
		t.Fatalf("empty: %v %v", got, err)
	}

	if _, err := ParseTime("yesterday", loc); err == nil {
		t.Fatalf("expected error for garbage timestamp")
	}
}

func TestHistoryPathEscapesRoom(t *testing.T) {
	if got := HistoryPath("R42"); got != "/api/pots/R42/chat/messages" {
		t.Fatalf("HistoryPath = %q", got)
	}
	if got := HistoryPath("a/../b"); got != "/api/pots/a%2F..%2Fb/chat/messages" {
		t.Fatalf("HistoryPath = %q", got)
	}
}
