package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"jircord/logger"
	"jircord/service/storage"
	"jircord/tools/errs"
	"jircord/tools/ids"
	"jircord/tools/safe"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Roster lists every identity that has ever signed in.
type Roster interface {
	Add(ctx context.Context, identity string) error
	All(ctx context.Context) ([]string, error)
}

// EntrySink receives each entry after it was appended to the log.
type EntrySink interface {
	Publish(ctx context.Context, e storage.Entry) error
}

// PresenceSink mirrors identities going online and offline.
type PresenceSink interface {
	Online(ctx context.Context, identity string) error
	Offline(ctx context.Context, identity string) error
}

type Options struct {
	Log       storage.MessageLog
	Sequencer *storage.Sequencer // nil runs store calls inline
	Roster    Roster
	Sink      EntrySink
	Mirror    PresenceSink
	Metrics   *Metrics

	EventQueue   int
	SendQueue    int
	StoreTimeout time.Duration
	Now          func() time.Time
}

// Router owns the presence table. Every presence change and every
// delivery decision happens on the goroutine running Run, or on the
// caller's goroutine when events are fed through Dispatch; the two must
// not be mixed.
type Router struct {
	presence *Presence
	log      storage.MessageLog
	seq      *storage.Sequencer
	fanout   *Fanout
	roster   Roster
	sink     EntrySink
	mirror   PresenceSink
	metrics  *Metrics

	sendQueue    int
	storeTimeout time.Duration
	now          func() time.Time

	events   chan Event
	stopped  chan struct{}
	stopOnce sync.Once

	closeMu  sync.Mutex
	closing  []*Session
	closeSig chan struct{}
}

func NewRouter(opts Options) *Router {
	safe.MustNotNil(opts.Log, "message log")
	if opts.Sequencer == nil {
		opts.Sequencer = storage.NewSequencer(0, 0)
	}
	if opts.EventQueue <= 0 {
		opts.EventQueue = 1024
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Router{
		presence:     NewPresence(),
		log:          opts.Log,
		seq:          opts.Sequencer,
		fanout:       NewFanout(opts.Metrics),
		roster:       opts.Roster,
		sink:         opts.Sink,
		mirror:       opts.Mirror,
		metrics:      opts.Metrics,
		sendQueue:    opts.SendQueue,
		storeTimeout: opts.StoreTimeout,
		now:          opts.Now,
		events:       make(chan Event, opts.EventQueue),
		stopped:      make(chan struct{}),
		closeSig:     make(chan struct{}, 1),
	}
}

// NewSession creates a Connecting session bound to identity. It becomes
// Active once its Connected event is handled.
func (r *Router) NewSession(identity string, conn Conn) *Session {
	return newSession(ids.GenerateString(), identity, conn, r.sendQueue, r.markClosed)
}

// Submit hands ev to the loop. It returns false once the router stopped.
func (r *Router) Submit(ev Event) bool {
	select {
	case <-r.stopped:
		return false
	default:
	}
	select {
	case r.events <- ev:
		return true
	case <-r.stopped:
		return false
	}
}

// Run is the event loop. On return every session is closed.
func (r *Router) Run(ctx context.Context) error {
	defer r.shutdown()
	logger.Info("[router] started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.events:
			r.Dispatch(ev)
		case <-r.closeSig:
			r.reap()
		}
	}
}

func (r *Router) shutdown() {
	r.stopOnce.Do(func() { close(r.stopped) })
	for _, s := range r.presence.all() {
		s.Close(websocket.CloseGoingAway, "server shutting down")
	}
	r.reap()
	logger.Info("[router] stopped")
}

// Dispatch handles one event synchronously.
func (r *Router) Dispatch(ev Event) {
	switch ev := ev.(type) {
	case Connected:
		r.onConnected(ev.Session)
	case Disconnected:
		r.onDisconnected(ev.Session)
	case MessageSent:
		r.onMessage(ev)
	case HistoryRequested:
		r.onHistory(ev)
	case RosterRequested:
		r.onRoster(ev.Session)
	default:
		logger.Warn("[router] unknown event", zap.Any("event", ev))
	}
	r.reap()
}

// markClosed runs on whichever goroutine closed the session.
func (r *Router) markClosed(s *Session) {
	r.closeMu.Lock()
	r.closing = append(r.closing, s)
	r.closeMu.Unlock()
	select {
	case r.closeSig <- struct{}{}:
	default:
	}
}

// reap deregisters closed sessions. Broadcasting the new presence may
// close more sessions, so it loops until nothing is pending.
func (r *Router) reap() {
	for {
		r.closeMu.Lock()
		pending := r.closing
		r.closing = nil
		r.closeMu.Unlock()
		if len(pending) == 0 {
			return
		}
		for _, s := range pending {
			r.onDisconnected(s)
		}
	}
}

func (r *Router) onConnected(s *Session) {
	if !s.activate() {
		logger.Debug("[router] session closed before registration", zap.String("session", s.id))
		return
	}
	first := r.presence.register(s)
	r.metrics.incSession()
	r.metrics.setPresence(r.presence.sessionCount(), len(r.presence.byUser))
	logger.Info("[router] connected",
		zap.String("user", s.identity), zap.String("session", s.id), zap.Bool("first", first))

	r.broadcastPresence()
	if first {
		r.mirrorPresence(s.identity, true)
	}
	r.pushRoster(s, true)
}

func (r *Router) onDisconnected(s *Session) {
	s.Close(websocket.CloseNormalClosure, "")
	removed, last := r.presence.deregister(s)
	if !removed {
		return
	}
	r.metrics.setPresence(r.presence.sessionCount(), len(r.presence.byUser))
	logger.Info("[router] disconnected",
		zap.String("user", s.identity), zap.String("session", s.id), zap.Bool("last", last))
	if last {
		r.broadcastPresence()
		r.mirrorPresence(s.identity, false)
	}
}

func (r *Router) broadcastPresence() {
	r.fanout.Deliver(r.presence.all(), usersFrame(EventUsersUpdate, r.presence.onlineIdentities()))
}

func (r *Router) onMessage(ev MessageSent) {
	s := ev.Session
	if !r.presence.contains(s) {
		return
	}
	if strings.TrimSpace(ev.Text) == "" {
		r.metrics.recordDrop("empty_content")
		logger.Debug("[router] blank message dropped", zap.String("user", s.identity))
		return
	}

	entry := storage.Entry{
		From:      s.identity,
		To:        ev.To,
		Text:      ev.Text,
		CreatedAt: r.now().UTC().Truncate(time.Millisecond),
	}
	ch := entry.Channel()
	r.appendEntry(ch, entry)

	var targets []*Session
	if ch.IsGlobal() {
		targets = r.presence.all()
	} else {
		targets = union(r.presence.sessionsFor(entry.To), r.presence.sessionsFor(entry.From))
		if !r.presence.isOnline(entry.To) {
			logger.Debug("[router] recipient offline", zap.String("to", entry.To))
		}
	}
	r.metrics.recordMessage(ch.IsGlobal())
	r.fanout.Deliver(targets, chatMessageFrame(entry))
}

// appendEntry queues the append on the channel's key, so it lands before
// any history query for the same channel handled later.
func (r *Router) appendEntry(ch storage.Channel, entry storage.Entry) {
	ok := r.seq.Do(ch.Key(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.storeTimeout)
		defer cancel()

		start := time.Now()
		err := r.log.Append(ctx, entry)
		r.metrics.observeStore("append", time.Since(start), err)
		if err != nil {
			logger.Warn("[store] append failed", zap.String("channel", ch.Key()), zap.Error(err))
			return
		}
		if r.sink == nil {
			return
		}
		if err := r.sink.Publish(ctx, entry); err != nil {
			logger.Warn("[publish] entry not published", zap.String("channel", ch.Key()), zap.Error(err))
		}
	})
	if !ok {
		r.metrics.recordDrop("store_backlog")
		logger.Warn("[store] store backlog full or closed, entry not appended", zap.String("channel", ch.Key()))
	}
}

func (r *Router) onHistory(ev HistoryRequested) {
	s := ev.Session
	if !r.presence.contains(s) {
		return
	}
	ch := storage.ChannelFor(s.identity, ev.Target)
	ok := r.seq.Do(ch.Key(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.storeTimeout)
		defer cancel()

		start := time.Now()
		entries, err := r.log.Query(ctx, ch)
		r.metrics.observeStore("query", time.Since(start), err)
		if err != nil {
			logger.Warn("[store] query failed", zap.String("channel", ch.Key()), zap.Error(err))
			s.Enqueue(errorFrame(errs.ErrLogUnavailable.WithDetail(EventMessagesGet)))
			return
		}
		s.Enqueue(historyFrame(entries))
	})
	if !ok {
		r.metrics.recordDrop("store_backlog")
		logger.Warn("[store] store backlog full or closed, history not served", zap.String("channel", ch.Key()))
		s.Enqueue(errorFrame(errs.ErrLogUnavailable.WithDetail(EventMessagesGet)))
	}
}

func (r *Router) onRoster(s *Session) {
	if !r.presence.contains(s) {
		return
	}
	r.pushRoster(s, false)
}

// pushRoster sends the directory to s. Without a directory the online
// identities stand in for it.
func (r *Router) pushRoster(s *Session, add bool) {
	if r.roster == nil {
		r.fanout.Deliver([]*Session{s}, usersFrame(EventUsersAll, r.presence.onlineIdentities()))
		return
	}
	identity := s.identity
	ok := r.seq.Do("roster", func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.storeTimeout)
		defer cancel()
		if add {
			if err := r.roster.Add(ctx, identity); err != nil {
				logger.Warn("[router] roster add failed", zap.String("user", identity), zap.Error(err))
			}
		}
		all, err := r.roster.All(ctx)
		if err != nil {
			logger.Warn("[router] roster unavailable", zap.Error(err))
			return
		}
		s.Enqueue(usersFrame(EventUsersAll, all))
	})
	if !ok {
		r.metrics.recordDrop("store_backlog")
		logger.Warn("[router] store backlog full or closed, roster not sent", zap.String("user", identity))
	}
}

func (r *Router) mirrorPresence(identity string, online bool) {
	if r.mirror == nil {
		return
	}
	ok := r.seq.Do("presence:"+identity, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.storeTimeout)
		defer cancel()
		var err error
		if online {
			err = r.mirror.Online(ctx, identity)
		} else {
			err = r.mirror.Offline(ctx, identity)
		}
		if err != nil {
			logger.Warn("[router] presence mirror failed",
				zap.String("user", identity), zap.Bool("online", online), zap.Error(err))
		}
	})
	if !ok {
		r.metrics.recordDrop("store_backlog")
		logger.Warn("[router] store backlog full or closed, presence not mirrored",
			zap.String("user", identity), zap.Bool("online", online))
	}
}
