package orm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const reconnectDelay = 2 * time.Second

// ChangeListener follows document changes made by other processes over LISTEN/NOTIFY
// and refreshes the client's live queries. Notifications can be lost while the
// connection is down, so every (re)connect refreshes all live queries.
type ChangeListener struct {
	log    *zap.Logger
	client *PostgresClient
	cancel context.CancelFunc
	done   chan struct{}
}

func NewChangeListener(log *zap.Logger, client *PostgresClient) *ChangeListener {
	return &ChangeListener{
		log:    log,
		client: client,
	}
}

func (l *ChangeListener) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(ctx)
	return nil
}

func (l *ChangeListener) Stop(ctx context.Context) error {
	if l.cancel == nil {
		return nil
	}
	l.cancel()

	select {
	case <-l.done:
		l.log.Info("change listener stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *ChangeListener) run(ctx context.Context) {
	defer close(l.done)

	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		l.log.Error("change feed interrupted", zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (l *ChangeListener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.client.DSN())
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+NotifyChannel)
	if err != nil {
		return err
	}
	l.log.Info("change listener connected", zap.String("channel", NotifyChannel))
	l.client.NotifyWatched()

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var change documentChange
		err = json.Unmarshal([]byte(notification.Payload), &change)
		if err != nil {
			l.log.Warn("malformed document change", zap.String("payload", notification.Payload), zap.Error(err))
			continue
		}
		if change.Origin == l.client.Origin() {
			continue
		}
		l.client.NotifyCollection(change.Collection)
	}
}
