package chat

import (
	"slices"
	"strings"
)

// feed is the ordered message sequence of one session. It is owned by the session loop.
type feed struct {
	entries       []Message
	historyMerged bool
}

// admit applies the admission rule to a message from the realtime transport or history.
// Our own TALK echoes and our own entrance are never appended.
func admit(msg Message, localUser string) bool {
	if msg.Kind == KindEnter && strings.TrimSpace(msg.Body) == "" {
		return false
	}
	return msg.Sender != localUser
}

// append adds msg at the tail. A timestamp earlier than the tail is raised to the tail's.
func (f *feed) append(msg Message) Message {
	if n := len(f.entries); n > 0 {
		if tail := f.entries[n-1].SentAt; msg.SentAt.Before(tail) {
			msg.SentAt = tail
		}
	}
	f.entries = append(f.entries, msg)
	return msg
}

// confirmEcho marks the oldest pending local message with the given body as confirmed.
func (f *feed) confirmEcho(body string) (Message, bool) {
	for i := range f.entries {
		m := &f.entries[i]
		if m.Local && m.Status == StatusPending && m.Kind == KindTalk && m.Body == body {
			m.Status = StatusConfirmed
			return *m, true
		}
	}
	return Message{}, false
}

func (f *feed) setStatus(id string, status Status) (Message, bool) {
	for i := range f.entries {
		m := &f.entries[i]
		if m.ID != id {
			continue
		}
		if m.Status == status {
			return *m, false
		}
		m.Status = status
		return *m, true
	}
	return Message{}, false
}

// mergeHistory folds the room history into the feed. When the feed is still empty the
// history is appended and returned as appended; otherwise the feed is rebuilt and reset is true.
func (f *feed) mergeHistory(history []Message, localUser string) (appended []Message, reset bool) {
	if f.historyMerged {
		return nil, false
	}
	f.historyMerged = true

	records := make([]Message, 0, len(history))
	for _, m := range history {
		if m.Kind == KindEnter && !admit(m, localUser) {
			continue
		}
		records = append(records, m)
	}
	slices.SortStableFunc(records, func(a, b Message) int {
		return a.SentAt.Compare(b.SentAt)
	})

	if len(f.entries) == 0 {
		for _, m := range records {
			appended = append(appended, f.append(m))
		}
		return appended, false
	}

	records = records[:len(records)-overlap(records, f.entries)]
	if len(records) == 0 {
		return nil, false
	}
	f.entries = stableMerge(records, f.entries)
	return nil, true
}

// overlap returns the length of the longest history suffix that matches the live prefix.
// Those messages were persisted after the subscription started and are already on screen.
// A live copy can never predate its persisted record, so an earlier live message is not a match.
func overlap(history, live []Message) int {
	for k := min(len(history), len(live)); k > 0; k-- {
		suffix := history[len(history)-k:]
		matched := true
		for i := range k {
			if !sameContent(suffix[i], live[i]) || live[i].SentAt.Before(suffix[i].SentAt) {
				matched = false
				break
			}
		}
		if matched {
			return k
		}
	}
	return 0
}

// stableMerge merges two time-ordered sequences, keeping each one's internal order.
// On equal timestamps history goes first.
func stableMerge(history, live []Message) []Message {
	out := make([]Message, 0, len(history)+len(live))
	i, j := 0, 0
	for i < len(history) && j < len(live) {
		if !live[j].SentAt.Before(history[i].SentAt) {
			out = append(out, history[i])
			i++
			continue
		}
		out = append(out, live[j])
		j++
	}
	out = append(out, history[i:]...)
	return append(out, live[j:]...)
}

func (f *feed) snapshot() []Message {
	return slices.Clone(f.entries)
}
