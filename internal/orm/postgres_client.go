package orm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	docstorepkg "github.com/stormhead-org/fairway/internal/docstore"
)

// NotifyChannel carries document change notifications between processes.
const NotifyChannel = "fairway_documents"

const fetchTimeout = 5 * time.Second

// PostgresClient is a docstore.Store over a single jsonb document table. Live queries
// of this process are refreshed after every local write; writes made by other
// processes arrive through the ChangeListener.
type PostgresClient struct {
	log      *zap.Logger
	database *gorm.DB
	dsn      string
	origin   string
	hub      *docstorepkg.Hub
}

type documentChange struct {
	Collection string `json:"collection"`
	Origin     string `json:"origin"`
}

func NewPostgresClient(log *zap.Logger, host string, port string, user string, password string) (*PostgresClient, error) {
	return NewPostgresClientFromDSN(
		log,
		fmt.Sprintf(
			"host=%s port=%s user=%s password=%s sslmode=disable",
			host,
			port,
			user,
			password,
		),
	)
}

func NewPostgresClientFromDSN(log *zap.Logger, dsn string) (*PostgresClient, error) {
	database, err := gorm.Open(
		postgres.Open(dsn),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		},
	)
	if err != nil {
		return nil, err
	}

	rawDatabase, err := database.DB()
	if err != nil {
		return nil, err
	}

	rawDatabase.SetMaxOpenConns(8)
	rawDatabase.SetMaxIdleConns(2)
	rawDatabase.SetConnMaxIdleTime(5 * time.Second)

	return &PostgresClient{
		log:      log,
		database: database,
		dsn:      dsn,
		origin:   uuid.NewString(),
		hub:      docstorepkg.NewHub(),
	}, nil
}

func (c *PostgresClient) Migrate() error {
	return c.database.AutoMigrate(&Document{})
}

func (c *PostgresClient) DSN() string {
	return c.dsn
}

// Origin identifies this client in change notifications.
func (c *PostgresClient) Origin() string {
	return c.origin
}

// Close ends every live query and closes the connection pool.
func (c *PostgresClient) Close() error {
	c.hub.CloseAll(docstorepkg.ErrSubscriptionLost)
	rawDatabase, err := c.database.DB()
	if err != nil {
		return err
	}
	return rawDatabase.Close()
}

// NotifyCollection refreshes the live queries on collection.
func (c *PostgresClient) NotifyCollection(collection string) {
	if !c.hub.Watching(collection) {
		return
	}
	err := c.hub.Notify(collection, c.fetcher(collection))
	if err != nil {
		c.log.Error("error refreshing live queries", zap.String("collection", collection), zap.Error(err))
	}
}

// NotifyWatched refreshes every live query, used after the change feed reconnects.
func (c *PostgresClient) NotifyWatched() {
	for _, collection := range c.hub.Collections() {
		c.NotifyCollection(collection)
	}
}

// changed refreshes local live queries and tells other processes about the write.
func (c *PostgresClient) changed(ctx context.Context, collection string) {
	c.NotifyCollection(collection)

	payload, err := json.Marshal(documentChange{Collection: collection, Origin: c.origin})
	if err != nil {
		return
	}
	err = c.database.WithContext(context.WithoutCancel(ctx)).Exec("SELECT pg_notify(?, ?)", NotifyChannel, string(payload)).Error
	if err != nil {
		c.log.Error("error publishing document change", zap.String("collection", collection), zap.Error(err))
	}
}

func (c *PostgresClient) fetcher(collection string) docstorepkg.Fetcher {
	return func(query docstorepkg.Query) ([]docstorepkg.Record, error) {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		return c.Query(ctx, collection, query)
	}
}
