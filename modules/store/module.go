// Package store provides the relational database shared by the account and
// task modules as a mono plugin.
package store

import (
	"context"
	"fmt"

	"github.com/example/task-tracker/config"
	"github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PluginModule owns the *gorm.DB. Plugins start before and stop after
// regular modules, so the handle outlives every consumer.
type PluginModule struct {
	container types.ServiceContainer
	db        *gorm.DB
	cfg       config.DatabaseConfig
	logger    types.Logger
}

// Compile-time interface checks.
var (
	_ mono.PluginModule          = (*PluginModule)(nil)
	_ mono.HealthCheckableModule = (*PluginModule)(nil)
)

// NewPluginModule creates the database plugin.
func NewPluginModule(cfg config.DatabaseConfig, logger types.Logger) *PluginModule {
	return &PluginModule{
		cfg:    cfg,
		logger: logger,
	}
}

// Name returns the module name.
func (m *PluginModule) Name() string {
	return "database"
}

// Start opens the connection and migrates the schema.
func (m *PluginModule) Start(_ context.Context) error {
	db, err := Open(m.cfg)
	if err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		return err
	}
	m.db = db

	m.logger.Info("Database ready", "driver", m.cfg.Driver, "path", m.cfg.Path)
	return nil
}

// Stop closes the connection.
func (m *PluginModule) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	m.logger.Info("Database connection closed")
	return nil
}

// SetContainer sets the service container for this plugin.
func (m *PluginModule) SetContainer(container types.ServiceContainer) {
	m.container = container
}

// Container returns the service container for this plugin.
func (m *PluginModule) Container() types.ServiceContainer {
	return m.container
}

// Port returns the database handle. It is nil until Start has run.
func (m *PluginModule) Port() *gorm.DB {
	return m.db
}

// Health pings the database.
func (m *PluginModule) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": m.cfg.Driver,
		},
	}
}

// Open connects to the configured database. Driver errors are translated
// into gorm's portable errors so unique violations surface as
// gorm.ErrDuplicatedKey.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.Path)
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the users, sessions and tasks tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&user.User{}, &user.Session{}, &task.Task{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
