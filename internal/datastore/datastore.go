// Package datastore persists garden records through GORM on SQLite,
// PostgreSQL or MySQL and exposes one repository per entity.
package datastore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gardentracker/gardentracker/internal/conf"
	"github.com/gardentracker/gardentracker/internal/logger"
	"github.com/gardentracker/gardentracker/internal/observability/metrics"
)

const sqliteMemory = ":memory:"

// Store owns the database handle and the entity repositories
type Store struct {
	db     *gorm.DB
	driver string
	log    logger.Logger
	base   *base

	Plants         PlantRepository
	SeedPackets    SeedPacketRepository
	GardenSupplies GardenSupplyRepository
	Notes          NoteRepository
	Harvests       HarvestRepository
	Years          YearRepository
	Images         ImageRepository
}

// Option configures a Store
type Option func(*options)

type options struct {
	metrics *metrics.DatastoreMetrics
	now     func() time.Time
	copier  FileCopier
}

// WithMetrics records repository metrics
func WithMetrics(m *metrics.DatastoreMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces time.Now for season and timestamp defaults
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithFileCopier enables image file copies on duplicate
func WithFileCopier(c FileCopier) Option {
	return func(o *options) { o.copier = c }
}

// Open connects to the configured database
func Open(settings *conf.Settings, log logger.Logger, opts ...Option) (*Store, error) {
	if log == nil {
		log = logger.NewSlogLogger(io.Discard, logger.LogLevelInfo, nil)
	}
	db := settings.Database
	driver := db.ResolvedDriver()
	dsn := db.DSN()

	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	gormOpts := []logger.GormOption{logger.WithSlowThreshold(db.SlowQuery)}
	if o.metrics != nil {
		gormOpts = append(gormOpts, logger.WithSlowQueryHook(o.metrics.RecordSlowStatement))
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(log.Module("sql"), gormOpts...),
		TranslateError: true,
	})
	if err != nil {
		return nil, dbError(err, "open", driver)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, dbError(err, "open", driver)
	}
	if driver == conf.DriverSQLite {
		// SQLite allows one writer; a single connection also keeps :memory: databases shared
		sqlDB.SetMaxOpenConns(1)
	} else if db.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(db.MaxOpenConns)
	}

	log.Info("database opened",
		logger.String("driver", driver),
		logger.String("dsn", logger.RedactDSN(dsn)))

	return New(gormDB, driver, log, opts...), nil
}

// New wraps an open connection
func New(db *gorm.DB, driver string, log logger.Logger, opts ...Option) *Store {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = logger.NewSlogLogger(io.Discard, logger.LogLevelInfo, nil)
	}

	b := &base{db: db, log: log, metrics: o.metrics, now: o.now}
	years := NewYearRepository(b)
	return &Store{
		db:             db,
		driver:         driver,
		log:            log,
		base:           b,
		Years:          years,
		Plants:         NewPlantRepository(b, years),
		SeedPackets:    NewSeedPacketRepository(b, o.copier),
		GardenSupplies: NewGardenSupplyRepository(b, o.copier),
		Notes:          NewNoteRepository(b),
		Harvests:       NewHarvestRepository(b),
		Images:         NewImageRepository(b),
	}
}

// dialectorFor picks the GORM driver for a resolved driver name
func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case conf.DriverSQLite:
		path, err := prepareSQLitePath(dsn)
		if err != nil {
			return nil, err
		}
		return sqlite.Open(path), nil
	case conf.DriverPostgres:
		return postgres.Open(dsn), nil
	case conf.DriverMySQL:
		return mysql.Open(dsn), nil
	}
	return nil, validationError(map[string]string{"database.driver": fmt.Sprintf("unsupported driver %q", driver)})
}

// prepareSQLitePath creates the parent directory and enables foreign keys
func prepareSQLitePath(dsn string) (string, error) {
	if dsn == "" {
		return "", validationError(map[string]string{"database.sqlite_path": "is required"})
	}
	file := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(file, '?'); i >= 0 {
		file = file[:i]
	}
	if file != sqliteMemory && !strings.Contains(dsn, "mode=memory") {
		if dir := filepath.Dir(file); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", dbError(err, "create directory", dir)
			}
		}
	}
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn, nil
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on", nil
}

// Migrate creates or updates every table
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models()...); err != nil {
		return dbError(err, "migrate", "all")
	}
	return nil
}

// Migrate runs schema migration on the store's connection
func (s *Store) Migrate(ctx context.Context) error {
	start := time.Now()
	if err := Migrate(s.db.WithContext(ctx)); err != nil {
		return err
	}
	s.log.Info("database schema migrated",
		logger.String("driver", s.driver),
		logger.Duration("duration", time.Since(start)))
	return nil
}

// Ping checks the connection and refreshes pool metrics
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return dbError(err, "ping", s.driver)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dbError(err, "ping", s.driver)
	}
	if s.base.metrics != nil {
		stats := sqlDB.Stats()
		s.base.metrics.UpdateConnectionMetrics(stats.OpenConnections, stats.InUse)
	}
	return nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the underlying GORM handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Driver returns the resolved driver name
func (s *Store) Driver() string {
	return s.driver
}
