package chat

// UpdateKind describes what changed in the feed.
type UpdateKind int

const (
	// UpdateAppend adds Message at the tail of the feed.
	UpdateAppend UpdateKind = iota
	// UpdateReset replaces the whole feed with Feed.
	UpdateReset
	// UpdateStatus changes the delivery status of the already rendered Message (matched by ID).
	UpdateStatus
	// UpdateState reports a lifecycle change; State and Reconnecting carry the new values.
	UpdateState
)

// Update is delivered to the presentation layer. State and Reconnecting are set on every update.
type Update struct {
	Kind         UpdateKind
	Message      Message
	Feed         []Message
	State        State
	Reconnecting bool
}

type eventKind int

const (
	evHistory eventKind = iota
	evConnected
	evDisconnected
	evReceived
	evSend
	evPublished
	evSnapshot
	evState
)

// event is processed by the session loop.
type event struct {
	kind  eventKind
	msg   Message
	msgs  []Message
	body  string
	err   error
	reply chan reply
}

type reply struct {
	msg          Message
	err          error
	feed         []Message
	state        State
	reconnecting bool
}

// listener adapts transport callbacks into loop events.
type listener struct {
	s *Session
}

func (l listener) OnConnect() {
	l.s.post(event{kind: evConnected})
}

func (l listener) OnDisconnect(err error) {
	l.s.post(event{kind: evDisconnected, err: err})
}

func (l listener) OnMessage(msg Message) {
	l.s.post(event{kind: evReceived, msg: msg})
}
