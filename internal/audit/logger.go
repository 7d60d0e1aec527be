package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenishantgiri/CampusCore/internal/ids"
	"github.com/thenishantgiri/CampusCore/internal/obs"
)

const defaultBuffer = 256

// Logger records audit entries through a buffered dispatcher. Writes are
// fire-and-forget relative to the caller: Record never blocks the mutation
// path and never returns an error. When the buffer is full the entry is
// dropped, counted, and logged; mutation durability takes priority over
// audit durability.
type Logger struct {
	sink Sink
	log  zerolog.Logger
	now  func() time.Time

	ch        chan Entry
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// Option configures a Logger.
type Option func(*Logger)

// WithBuffer sets the dispatch queue size.
func WithBuffer(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.ch = make(chan Entry, n)
		}
	}
}

// WithDiagnostics sets the logger used for dispatcher diagnostics (drops,
// close). Audit entries themselves go to the sink, not here.
func WithDiagnostics(log zerolog.Logger) Option {
	return func(l *Logger) { l.log = log }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Logger) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New starts a Logger dispatching to sink.
func New(sink Sink, opts ...Option) *Logger {
	l := &Logger{
		sink: sink,
		log:  zerolog.Nop(),
		now:  time.Now,
		ch:   make(chan Entry, defaultBuffer),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.sink == nil {
		l.sink = NopSink{}
	}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Logger) run() {
	defer l.wg.Done()
	for {
		select {
		case entry := <-l.ch:
			l.sink.Emit(context.Background(), entry)
		case <-l.done:
			// Drain whatever is queued before stopping.
			for {
				select {
				case entry := <-l.ch:
					l.sink.Emit(context.Background(), entry)
				default:
					return
				}
			}
		}
	}
}

// Record appends one audit entry for a successful privileged mutation.
// Absent values are pruned from both actor and details before the entry is
// handed to the dispatcher, so a partially known actor never serializes
// placeholders. Record is safe for concurrent use and never blocks.
func (l *Logger) Record(ctx context.Context, action string, actor Actor, details map[string]any) {
	if l == nil || l.closed.Load() || action == "" {
		return
	}
	entry := Entry{
		ID:        ids.New(),
		Action:    action,
		Actor:     actor,
		Details:   Prune(details),
		RequestID: requestIDFromContext(ctx),
		Timestamp: l.now().UTC(),
	}
	select {
	case l.ch <- entry:
		obs.AuditRecorded()
	case <-l.done:
	default:
		l.dropped.Add(1)
		l.log.Warn().Str("action", action).Msg("audit entry dropped: queue full")
	}
}

// Dropped returns how many entries were discarded because the queue was full.
func (l *Logger) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// Close drains the queue and stops the dispatcher. Entries recorded after
// Close are discarded silently.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
		l.wg.Wait()
	})
}

// NopSink discards entries.
type NopSink struct{}

func (NopSink) Emit(context.Context, Entry) {}

// ZerologSink writes audit entries as structured log lines tagged
// audit=true, one line per entry.
type ZerologSink struct {
	Log zerolog.Logger
}

func (s ZerologSink) Emit(_ context.Context, entry Entry) {
	s.Log.Info().
		Bool("audit", true).
		Str("audit_id", entry.ID).
		Fields(entry.Fields()).
		Msg("AUDIT: " + entry.Action)
}

// MemorySink retains entries in memory for inspection in tests.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

func (s *MemorySink) Emit(_ context.Context, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

// Entries returns a snapshot of everything emitted so far.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
