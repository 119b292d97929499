// Package transcript ведёт журнал переписки. Запись асинхронная и
// best-effort: сбой приёмника не влияет на ответ пользователю.
package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/riya-bot/internal/lib/sl"
	"github.com/magabrotheeeer/riya-bot/internal/metrics"
	"github.com/magabrotheeeer/riya-bot/internal/models"
)

// Sink приёмник строк журнала.
type Sink interface {
	Append(ctx context.Context, entry models.TranscriptEntry) error
}

// Logger складывает записи в ограниченную очередь и пишет их в приёмник
// из одной фоновой горутины. При переполнении очереди запись отбрасывается.
type Logger struct {
	log     *slog.Logger
	sink    Sink
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan models.TranscriptEntry
	done   chan struct{}
}

// NewLogger создаёт журнал и запускает фоновую запись.
func NewLogger(log *slog.Logger, sink Sink, buffer int, timeout time.Duration) *Logger {
	if buffer < 1 {
		buffer = 1
	}
	l := &Logger{
		log:     log.With(slog.String("component", "transcript")),
		sink:    sink,
		timeout: timeout,
		queue:   make(chan models.TranscriptEntry, buffer),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// Log ставит запись в очередь и никогда не блокирует.
func (l *Logger) Log(entry models.TranscriptEntry) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		metrics.TranscriptDropped.WithLabelValues("closed").Inc()
		return
	}
	select {
	case l.queue <- entry:
	default:
		metrics.TranscriptDropped.WithLabelValues("queue_full").Inc()
		l.log.Warn("transcript queue full, dropping row", sl.UserID(entry.UserID))
	}
}

// Close прекращает приём записей и ждёт, пока очередь будет записана,
// но не дольше, чем позволяет ctx.
func (l *Logger) Close(ctx context.Context) error {
	const op = "transcript.Close"
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

func (l *Logger) run() {
	defer close(l.done)
	for entry := range l.queue {
		l.write(entry)
	}
}

func (l *Logger) write(entry models.TranscriptEntry) {
	ctx := context.Background()
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	if err := l.sink.Append(ctx, entry); err != nil {
		metrics.TranscriptDropped.WithLabelValues("sink_error").Inc()
		l.log.Error("failed to write transcript row", sl.UserID(entry.UserID), sl.Err(err))
	}
}
