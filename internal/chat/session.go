package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the externally observed lifecycle state of a session.
type State int

const (
	StateInit State = iota
	StateLoadingHistory
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateLoadingHistory:
		return "loading_history"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	defaultUpdateBuffer = 64
	outboxSize          = 32
)

// Options configures a Session.
type Options struct {
	RoomID    string
	LocalUser string
	// History is optional; without it the session runs live-only.
	History   HistoryLoader
	Transport Transport
	Logger    *zerolog.Logger

	// Now and NewID are overridable for tests.
	Now          func() time.Time
	NewID        func() string
	UpdateBuffer int
}

// Session is one chat-room viewing. It exclusively owns its transport connection and
// serializes all state changes through a single loop goroutine.
type Session struct {
	roomID    string
	localUser string
	history   HistoryLoader
	conn      Conn
	log       zerolog.Logger
	now       func() time.Time
	newID     func() string

	ctx     context.Context
	cancel  context.CancelFunc
	events  chan event
	outbox  chan Message
	updates chan Update
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	// Owned by the loop goroutine.
	state        State
	reconnecting bool
	announced    bool
	resync       bool
	feed         feed
}

// Open creates a session, starts the history load and the transport connection concurrently,
// and returns without waiting for either. Cancelling ctx closes the session.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if strings.TrimSpace(opts.RoomID) == "" {
		return nil, ErrNoRoom
	}
	if strings.TrimSpace(opts.LocalUser) == "" {
		return nil, ErrNoIdentity
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("%w: no transport configured", ErrConnectFailure)
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	if opts.UpdateBuffer <= 0 {
		opts.UpdateBuffer = defaultUpdateBuffer
	}

	s := &Session{
		roomID:    opts.RoomID,
		localUser: opts.LocalUser,
		history:   opts.History,
		log:       opts.Logger.With().Str("room", opts.RoomID).Str("user", opts.LocalUser).Logger(),
		now:       opts.Now,
		newID:     opts.NewID,
		events:    make(chan event, 64),
		outbox:    make(chan Message, outboxSize),
		updates:   make(chan Update, opts.UpdateBuffer),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		state:     StateInit,
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.setState(StateLoadingHistory)
	s.conn = opts.Transport.Connect(s.ctx, s.roomID, listener{s})

	s.wg.Add(1)
	go s.publishLoop()
	go s.loadHistory(s.ctx)
	go s.run()

	return s, nil
}

// RoomID returns the room this session views.
func (s *Session) RoomID() string { return s.roomID }

// LocalUser returns the nickname the session publishes as.
func (s *Session) LocalUser() string { return s.localUser }

// Updates streams feed changes to the presentation layer. The channel is closed when the session closes.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Feed returns a snapshot of the ordered feed, or nil once the session is closed.
func (s *Session) Feed() []Message {
	r, ok := s.request(event{kind: evSnapshot})
	if !ok {
		return nil
	}
	return r.feed
}

// State reports the lifecycle state and whether a live session is currently reconnecting.
func (s *Session) State() (State, bool) {
	r, ok := s.request(event{kind: evState})
	if !ok {
		return StateClosed, false
	}
	return r.state, r.reconnecting
}

// Send appends body to the feed optimistically and publishes it.
// Blank bodies return ErrEmptyMessage; sends outside LIVE return ErrNotLive.
func (s *Session) Send(body string) (Message, error) {
	r, ok := s.request(event{kind: evSend, body: body})
	if !ok {
		return Message{}, ErrSessionClosed
	}
	return r.msg, r.err
}

// Close tears the session down: the transport is disconnected exactly once and the feed is discarded.
// It is safe to call more than once.
func (s *Session) Close() error {
	s.once.Do(func() { close(s.quit) })
	<-s.done
	return nil
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case ev := <-s.events:
			s.handle(ev)
		case <-s.quit:
			s.shutdown()
			return
		case <-s.ctx.Done():
			s.once.Do(func() { close(s.quit) })
			s.shutdown()
			return
		}
	}
}

func (s *Session) handle(ev event) {
	switch ev.kind {
	case evHistory:
		s.onHistory(ev.msgs, ev.err)
	case evConnected:
		s.onConnected()
	case evDisconnected:
		s.onDisconnected(ev.err)
	case evReceived:
		s.onReceived(ev.msg)
	case evSend:
		msg, err := s.onSend(ev.body)
		ev.reply <- reply{msg: msg, err: err}
	case evPublished:
		s.onPublished(ev.msg, ev.err)
	case evSnapshot:
		ev.reply <- reply{feed: s.feed.snapshot()}
	case evState:
		ev.reply <- reply{state: s.state, reconnecting: s.reconnecting}
	}
}

func (s *Session) onHistory(msgs []Message, err error) {
	if err != nil {
		s.feed.historyMerged = true
		s.log.Warn().Err(err).Str("code", Code(err)).Msg("history unavailable, continuing live-only")
		return
	}

	for i := range msgs {
		if msgs[i].ID == "" {
			msgs[i].ID = s.newID()
		}
		if msgs[i].RoomID == "" {
			msgs[i].RoomID = s.roomID
		}
		msgs[i].Status = StatusConfirmed
		msgs[i].Local = false
	}

	appended, reset := s.feed.mergeHistory(msgs, s.localUser)
	for _, m := range appended {
		s.emit(Update{Kind: UpdateAppend, Message: m})
	}
	if reset {
		s.emit(Update{Kind: UpdateReset, Feed: s.feed.snapshot()})
	}
	s.log.Debug().Int("records", len(msgs)).Bool("reset", reset).Msg("history merged")
}

func (s *Session) onConnected() {
	switch {
	case s.state == StateLoadingHistory:
		s.setState(StateLive)
	case s.reconnecting:
		s.reconnecting = false
		s.log.Info().Msg("reconnected")
		s.emit(Update{Kind: UpdateState})
	}

	if s.announced {
		return
	}
	s.announced = true
	s.enqueue(Message{
		ID:     s.newID(),
		Kind:   KindEnter,
		RoomID: s.roomID,
		Sender: s.localUser,
		Body:   fmt.Sprintf("%s entered", s.localUser),
		SentAt: s.now(),
		Local:  true,
	})
}

func (s *Session) onDisconnected(err error) {
	if s.state != StateLive {
		s.log.Warn().Err(err).Str("code", ErrCodeConnectFailure).Msg("gateway not reachable yet")
		return
	}
	if s.reconnecting {
		s.log.Debug().Err(err).Msg("reconnect attempt failed")
		return
	}
	s.reconnecting = true
	s.log.Warn().Err(err).Msg("connection lost, reconnecting")
	s.emit(Update{Kind: UpdateState})
}

func (s *Session) onReceived(msg Message) {
	if msg.RoomID != "" && msg.RoomID != s.roomID {
		s.log.Debug().Str("msg_room", msg.RoomID).Msg("dropping message for another room")
		return
	}
	if !admit(msg, s.localUser) {
		if msg.Kind == KindTalk && msg.Sender == s.localUser {
			if confirmed, ok := s.feed.confirmEcho(msg.Body); ok {
				s.emit(Update{Kind: UpdateStatus, Message: confirmed})
			}
		}
		return
	}

	msg.ID = s.newID()
	msg.RoomID = s.roomID
	msg.Status = StatusConfirmed
	msg.Local = false
	if msg.SentAt.IsZero() {
		msg.SentAt = s.now()
	}
	s.emit(Update{Kind: UpdateAppend, Message: s.feed.append(msg)})
}

func (s *Session) onSend(body string) (Message, error) {
	if strings.TrimSpace(body) == "" {
		return Message{}, ErrEmptyMessage
	}
	if s.state != StateLive || s.reconnecting {
		return Message{}, ErrNotLive
	}

	msg := s.feed.append(Message{
		ID:     s.newID(),
		Kind:   KindTalk,
		RoomID: s.roomID,
		Sender: s.localUser,
		Body:   body,
		SentAt: s.now(),
		Status: StatusPending,
		Local:  true,
	})
	s.emit(Update{Kind: UpdateAppend, Message: msg})
	s.enqueue(msg)
	return msg, nil
}

func (s *Session) onPublished(msg Message, err error) {
	s.log.Warn().Err(err).Str("code", Code(err)).Str("kind", string(msg.Kind)).Msg("publish failed")
	if msg.Kind != KindTalk {
		return
	}
	if updated, ok := s.feed.setStatus(msg.ID, StatusFailed); ok {
		s.emit(Update{Kind: UpdateStatus, Message: updated})
	}
}

// enqueue hands msg to the publisher without blocking the loop.
func (s *Session) enqueue(msg Message) {
	select {
	case s.outbox <- msg:
	default:
		s.onPublished(msg, fmt.Errorf("%w: outbox full", ErrPublishFailure))
	}
}

func (s *Session) publishLoop() {
	defer s.wg.Done()
	for {
		select {
		case msg := <-s.outbox:
			if err := s.conn.Publish(s.ctx, msg); err != nil {
				s.post(event{kind: evPublished, msg: msg, err: err})
			}
		case <-s.quit:
			return
		}
	}
}

func (s *Session) loadHistory(ctx context.Context) {
	if s.history == nil {
		s.post(event{kind: evHistory, err: fmt.Errorf("%w: no history loader", ErrHistoryUnavailable)})
		return
	}
	msgs, err := s.history.LoadHistory(ctx, s.roomID)
	s.post(event{kind: evHistory, msgs: msgs, err: err})
}

func (s *Session) shutdown() {
	s.state = StateClosed
	s.cancel()
	s.conn.Disconnect()
	s.wg.Wait()
	s.feed = feed{}
	close(s.updates)
	s.log.Info().Msg("session closed")
}

func (s *Session) setState(state State) {
	prev := s.state
	s.state = state
	s.log.Debug().Stringer("from", prev).Stringer("to", state).Msg("session state")
	if prev != StateInit {
		s.emit(Update{Kind: UpdateState})
	}
}

// emit delivers an update without blocking. When the consumer falls behind, the next
// update that fits is replaced by a reset carrying the whole feed.
func (s *Session) emit(u Update) {
	if s.resync {
		u = Update{Kind: UpdateReset, Feed: s.feed.snapshot()}
	}
	u.State = s.state
	u.Reconnecting = s.reconnecting

	select {
	case s.updates <- u:
		s.resync = false
	default:
		if !s.resync {
			s.log.Warn().Msg("presentation consumer is behind, will resync")
		}
		s.resync = true
	}
}

// post hands an event to the loop unless the session is closing.
func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.quit:
	}
}

func (s *Session) request(ev event) (reply, bool) {
	ev.reply = make(chan reply, 1)
	select {
	case s.events <- ev:
	case <-s.quit:
		return reply{}, false
	}
	select {
	case r := <-ev.reply:
		return r, true
	case <-s.done:
		return reply{}, false
	}
}
