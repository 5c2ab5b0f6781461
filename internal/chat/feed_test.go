package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmit(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"remote talk", Message{Kind: KindTalk, Sender: "bob", Body: "hi"}, true},
		{"remote enter", Message{Kind: KindEnter, Sender: "bob", Body: "bob entered"}, true},
		{"own talk echo", Message{Kind: KindTalk, Sender: "alice", Body: "hi"}, false},
		{"own enter", Message{Kind: KindEnter, Sender: "alice", Body: "alice entered"}, false},
		{"empty enter", Message{Kind: KindEnter, Sender: "bob", Body: "  "}, false},
		{"empty talk is kept", Message{Kind: KindTalk, Sender: "bob"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, admit(tt.msg, "alice"))
		})
	}
}

func TestParseKind(t *testing.T) {
	assert.Equal(t, KindEnter, ParseKind("ENTER"))
	assert.Equal(t, KindEnter, ParseKind(" enter "))
	assert.Equal(t, KindTalk, ParseKind("TALK"))
	assert.Equal(t, KindTalk, ParseKind(""))
	assert.Equal(t, KindTalk, ParseKind("SHOUT"))
}

func TestAppendClampsTimestamps(t *testing.T) {
	var f feed
	f.append(Message{Sender: "bob", SentAt: t0.Add(time.Minute)})
	got := f.append(Message{Sender: "carol", SentAt: t0})

	assert.Equal(t, t0.Add(time.Minute), got.SentAt)
	assert.Equal(t, t0.Add(time.Minute), f.entries[1].SentAt)
}

func TestConfirmEchoPicksOldestPending(t *testing.T) {
	var f feed
	f.append(Message{ID: "1", Kind: KindTalk, Sender: "alice", Body: "same", Status: StatusPending, Local: true})
	f.append(Message{ID: "2", Kind: KindTalk, Sender: "alice", Body: "same", Status: StatusPending, Local: true})

	m, ok := f.confirmEcho("same")
	require.True(t, ok)
	assert.Equal(t, "1", m.ID)

	m, ok = f.confirmEcho("same")
	require.True(t, ok)
	assert.Equal(t, "2", m.ID)

	_, ok = f.confirmEcho("same")
	assert.False(t, ok)
}

func TestSetStatus(t *testing.T) {
	var f feed
	f.append(Message{ID: "1", Status: StatusPending})

	m, changed := f.setStatus("1", StatusFailed)
	require.True(t, changed)
	assert.Equal(t, StatusFailed, m.Status)

	_, changed = f.setStatus("1", StatusFailed)
	assert.False(t, changed)

	_, changed = f.setStatus("missing", StatusFailed)
	assert.False(t, changed)
}

func TestMergeHistoryIntoEmptyFeed(t *testing.T) {
	var f feed
	appended, reset := f.mergeHistory([]Message{
		{Kind: KindTalk, Sender: "bob", Body: "second", SentAt: t0.Add(time.Second)},
		{Kind: KindTalk, Sender: "alice", Body: "first", SentAt: t0},
		{Kind: KindEnter, Sender: "alice", Body: "alice entered", SentAt: t0},
	}, "alice")

	assert.False(t, reset)
	assert.Equal(t, []string{"alice:first", "bob:second"}, bodies(appended))
	assert.Equal(t, []string{"alice:first", "bob:second"}, bodies(f.snapshot()))

	// A second history result is ignored.
	appended, reset = f.mergeHistory([]Message{{Kind: KindTalk, Sender: "x", Body: "y"}}, "alice")
	assert.Nil(t, appended)
	assert.False(t, reset)
	assert.Len(t, f.entries, 2)
}

func TestMergeHistoryWithoutOverlap(t *testing.T) {
	var f feed
	f.append(Message{Kind: KindTalk, Sender: "carol", Body: "live", SentAt: t0.Add(time.Minute)})

	_, reset := f.mergeHistory([]Message{
		{Kind: KindTalk, Sender: "bob", Body: "old", SentAt: t0},
		{Kind: KindTalk, Sender: "bob", Body: "newer", SentAt: t0.Add(2 * time.Minute)},
	}, "alice")

	require.True(t, reset)
	assert.Equal(t, []string{"bob:old", "carol:live", "bob:newer"}, bodies(f.entries))
}

func TestOverlap(t *testing.T) {
	a := Message{Kind: KindTalk, Sender: "bob", Body: "a"}
	b := Message{Kind: KindTalk, Sender: "bob", Body: "b"}
	c := Message{Kind: KindTalk, Sender: "carol", Body: "c"}

	assert.Equal(t, 0, overlap([]Message{a}, []Message{b}))
	assert.Equal(t, 1, overlap([]Message{a, b}, []Message{b, c}))
	assert.Equal(t, 2, overlap([]Message{a, b, c}, []Message{b, c}))
	assert.Equal(t, 0, overlap(nil, []Message{a}))
}

func TestOverlapIgnoresEarlierLiveRepeat(t *testing.T) {
	history := []Message{
		{Kind: KindTalk, Sender: "bob", Body: "ok", SentAt: t0.Add(2 * time.Minute)},
	}
	live := []Message{
		{Kind: KindTalk, Sender: "bob", Body: "ok", SentAt: t0.Add(time.Minute)},
	}
	assert.Equal(t, 0, overlap(history, live))

	live[0].SentAt = t0.Add(3 * time.Minute)
	assert.Equal(t, 1, overlap(history, live))
}

func TestMergeHistoryKeepsRepeatedMessage(t *testing.T) {
	var f feed
	f.append(Message{Kind: KindTalk, Sender: "bob", Body: "ok", SentAt: t0.Add(time.Minute)})

	_, reset := f.mergeHistory([]Message{
		{Kind: KindTalk, Sender: "bob", Body: "ok", SentAt: t0.Add(2 * time.Minute)},
	}, "alice")

	require.True(t, reset)
	assert.Equal(t, []string{"bob:ok", "bob:ok"}, bodies(f.entries))
}

func TestStableMergeTiesPreferHistory(t *testing.T) {
	history := []Message{
		{Sender: "h1", SentAt: t0},
		{Sender: "h2", SentAt: t0.Add(time.Second)},
	}
	live := []Message{
		{Sender: "l1", SentAt: t0},
		{Sender: "l2", SentAt: t0.Add(2 * time.Second)},
	}

	got := stableMerge(history, live)
	senders := make([]string, 0, len(got))
	for _, m := range got {
		senders = append(senders, m.Sender)
	}
	assert.Equal(t, []string{"h1", "l1", "h2", "l2"}, senders)
}

func TestCode(t *testing.T) {
	assert.Equal(t, ErrCodeHistoryUnavailable, Code(ErrHistoryUnavailable))
	assert.Equal(t, ErrCodeUnknown, Code(errBoom))
}
