package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/iamwavecut/ngguard/internal/db"
	"github.com/iamwavecut/ngguard/internal/infra"
	"github.com/iamwavecut/ngguard/resources"
)

var _ db.Client = (*sqliteClient)(nil)

// MemoryPath keeps the database inside the process.
const MemoryPath = ":memory:"

type sqliteClient struct {
	db  *sqlx.DB
	ttl time.Duration

	runMutex  sync.Mutex
	started   bool
	runCancel context.CancelFunc
	workersWg sync.WaitGroup
}

// NewSQLiteClient opens (or creates) the database at dir/name and applies pending migrations.
// A name equal to MemoryPath ignores dir.
func NewSQLiteClient(ctx context.Context, dir, name string) (*sqliteClient, error) {
	dsn := MemoryPath
	if name != MemoryPath {
		workDir, err := infra.WorkDir(dir)
		if err != nil {
			return nil, err
		}
		dsn = filepath.Join(workDir, name)
	}

	dbx, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, errors.WithMessage(err, "cant open db")
	}
	// every connection to :memory: is a separate database, and sqlite has a single writer anyway
	dbx.SetMaxOpenConns(1)

	if err := applyMigrations(dbx); err != nil {
		_ = dbx.Close()
		return nil, err
	}

	return &sqliteClient{db: dbx}, nil
}

func applyMigrations(dbx *sqlx.DB) error {
	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	if _, _, err := migrate.PlanMigration(dbx.DB, "sqlite3", migrationsSource, migrate.Up, 0); err != nil {
		return errors.WithMessage(err, "migrate plan failed")
	}
	n, err := migrate.Exec(dbx.DB, "sqlite3", migrationsSource, migrate.Up)
	if err != nil {
		return errors.WithMessage(err, "migrate up failed")
	}
	if n > 0 {
		log.WithField("object", "SQLiteClient").Infof("applied %d migrations!", n)
	}
	return nil
}

// WithTTL makes records older than ttl count as absent. Zero disables expiry.
func (c *sqliteClient) WithTTL(ttl time.Duration) *sqliteClient {
	c.ttl = ttl
	return c
}

// Start runs a background sweep of expired records when a TTL is set.
func (c *sqliteClient) Start(ctx context.Context) error {
	c.runMutex.Lock()
	defer c.runMutex.Unlock()
	if c.started {
		return nil
	}
	c.started = true
	if c.ttl <= 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.runCancel = cancel

	interval := c.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	c.workersWg.Add(1)
	go func() {
		defer c.workersWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				n, err := c.Sweep(runCtx, time.Now())
				entry := log.WithField("object", "SQLiteClient")
				switch {
				case err != nil && runCtx.Err() == nil:
					entry.WithField("error", err.Error()).Warn("cant sweep escalation records")
				case n > 0:
					entry.WithField("count", n).Debug("swept expired escalation records")
				}
			}
		}
	}()
	return nil
}

// Stop waits for the sweeper and closes the database.
func (c *sqliteClient) Stop(ctx context.Context) error {
	c.runMutex.Lock()
	if !c.started {
		c.runMutex.Unlock()
		return c.Close()
	}
	c.started = false
	cancel := c.runCancel
	c.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.workersWg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return c.Close()
	}
}

func (c *sqliteClient) Close() error {
	return c.db.Close()
}
