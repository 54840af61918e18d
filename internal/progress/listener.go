package progress

import (
	"context"
	"log"
	"time"

	"github.com/lib/pq"
)

const (
	minRetryDelay = 10 * time.Second
	maxRetryDelay = time.Minute

	backtestEventsChannel = "backtest_events"
)

// Listener subscribes to Postgres NOTIFY events emitted by
// internal/runstore when a run transitions state, and rebroadcasts them
// to every websocket client connected to this process. This lets a
// dashboard process separate from the worker that actually ran the
// backtest still observe live progress.
type Listener struct {
	dbURL       string
	logger      *log.Logger
	broadcaster *Broadcaster
	shutdown    chan struct{}
}

// NewListener returns a Listener that will publish events onto
// broadcaster once Start is called.
func NewListener(dbURL string, broadcaster *Broadcaster, logger *log.Logger) *Listener {
	return &Listener{
		dbURL:       dbURL,
		logger:      logger,
		broadcaster: broadcaster,
		shutdown:    make(chan struct{}),
	}
}

// Start begins listening in a background goroutine. It returns
// immediately.
func (l *Listener) Start(ctx context.Context) {
	go l.listenLoop(ctx)
}

// Stop terminates the listen loop.
func (l *Listener) Stop() { close(l.shutdown) }

func (l *Listener) listenLoop(ctx context.Context) {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.logger.Printf("[progress] listener event error: %v", err)
		}
	}

	listener := pq.NewListener(l.dbURL, minRetryDelay, maxRetryDelay, reportProblem)
	defer listener.Close()

	if err := listener.Listen(backtestEventsChannel); err != nil {
		l.logger.Printf("[progress] failed to listen on %s: %v", backtestEventsChannel, err)
		return
	}
	l.logger.Printf("[progress] listening for notifications on %s", backtestEventsChannel)

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.shutdown:
			return
		case notification := <-listener.Notify:
			l.handleNotification(notification)
		case <-time.After(90 * time.Second):
			go func() {
				_ = listener.Ping()
			}()
		}
	}
}

func (l *Listener) handleNotification(n *pq.Notification) {
	if n == nil {
		return
	}
	l.broadcaster.Broadcast("backtest_event", n.Extra)
}
