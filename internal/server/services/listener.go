package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/bookly/internal/logging"
	"github.com/dmitrijs2005/bookly/internal/server/repositories/documents"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

// Notifications yields Postgres notifications of a LISTEN connection.
type Notifications interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// Listen feeds each notification payload, a collection path, into the hub
// until ctx is done or n fails.
func (h *Hub) Listen(ctx context.Context, n Notifications) error {
	for {
		note, err := n.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		h.Changed(note.Payload)
	}
}

type listenConn interface {
	Notifications
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

// Listener holds a dedicated connection LISTENing on the documents channel
// and reconnects with exponential backoff when it drops.
type Listener struct {
	dsn        string
	hub        *Hub
	log        logging.Logger
	connect    func(ctx context.Context, dsn string) (listenConn, error)
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewListener(dsn string, hub *Hub, log logging.Logger) *Listener {
	if log == nil {
		log = logging.Nop()
	}
	return &Listener{
		dsn: dsn,
		hub: hub,
		log: log,
		connect: func(ctx context.Context, dsn string) (listenConn, error) {
			return pgx.Connect(ctx, dsn)
		},
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Run blocks until ctx is done. Failed connects are retried with a capped
// exponential backoff; a session that was up starts a fresh backoff.
func (l *Listener) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		err := retry.Do(ctx, l.backoff(), func(ctx context.Context) error {
			connected, err := l.session(ctx)
			if ctx.Err() != nil {
				return nil
			}
			if connected {
				return err
			}
			l.log.Warn(ctx, "document listener connect failed", "error", err)
			return retry.RetryableError(err)
		})
		if ctx.Err() != nil {
			return nil
		}
		l.log.Warn(ctx, "document listener disconnected", "error", err)
	}
	return nil
}

func (l *Listener) backoff() retry.Backoff {
	return retry.WithCappedDuration(l.maxBackoff, retry.NewExponential(l.minBackoff))
}

func (l *Listener) session(ctx context.Context) (connected bool, err error) {
	conn, err := l.connect(ctx, l.dsn)
	if err != nil {
		return false, err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+documents.NotifyChannel); err != nil {
		return false, err
	}
	l.log.Info(ctx, "document listener connected", "channel", documents.NotifyChannel)

	// Changes may have been missed while disconnected.
	l.hub.ChangedAll()
	return true, l.hub.Listen(ctx, conn)
}
