package account

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/example/task-tracker/config"
	"github.com/example/task-tracker/modules/store"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/storage/redis/v3"
)

const sessionKeyPrefix = "session:"

// AccountModule provides registration and session services.
type AccountModule struct {
	database     *store.PluginModule
	sessions     SessionStore
	service      *AccountService
	cfg          config.SessionConfig
	storeTimeout time.Duration
	logger       types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*AccountModule)(nil)
	_ mono.ServiceProviderModule = (*AccountModule)(nil)
	_ mono.UsePluginModule       = (*AccountModule)(nil)
	_ mono.HealthCheckableModule = (*AccountModule)(nil)
)

// NewModule creates a new AccountModule.
func NewModule(cfg config.SessionConfig, storeTimeout time.Duration, logger types.Logger) *AccountModule {
	return &AccountModule{
		cfg:          cfg,
		storeTimeout: storeTimeout,
		logger:       logger,
	}
}

// Name returns the module name.
func (m *AccountModule) Name() string {
	return "account"
}

// SetPlugin receives the database plugin from the framework.
func (m *AccountModule) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "database" {
		return
	}
	db, ok := plugin.(*store.PluginModule)
	if !ok {
		m.logger.Error("Invalid plugin type for database",
			"alias", alias,
			"expected", "*store.PluginModule")
		return
	}
	m.database = db
}

// Start builds the service on top of the database plugin.
func (m *AccountModule) Start(_ context.Context) error {
	if m.database == nil || m.database.Port() == nil {
		return fmt.Errorf("required plugin 'database' not registered")
	}
	db := m.database.Port()

	backend := "database"
	if m.cfg.RedisAddr != "" {
		host, port := parseRedisAddr(m.cfg.RedisAddr)
		m.sessions = NewKVSessionStore(redis.New(redis.Config{
			Host: host,
			Port: port,
		}), sessionKeyPrefix)
		backend = "redis"
	} else {
		m.sessions = NewGormSessionStore(db)
	}

	m.service = NewAccountService(
		NewUserRepository(db),
		m.sessions,
		NewPasswordHasher(m.cfg.BcryptCost),
		NewTokenManager(TokenConfig{
			SecretKey: m.cfg.Secret,
			Issuer:    m.cfg.Issuer,
		}),
		m.cfg.TTL,
		m.storeTimeout,
	)

	m.logger.Info("Account module started", "sessions", backend, "ttl", m.cfg.TTL.String())
	return nil
}

// Stop releases the session store.
func (m *AccountModule) Stop(_ context.Context) error {
	if m.sessions != nil {
		if err := m.sessions.Close(); err != nil {
			return fmt.Errorf("failed to close session store: %w", err)
		}
	}
	m.logger.Info("Account module stopped")
	return nil
}

// Health reports whether the module is serving.
func (m *AccountModule) Health(_ context.Context) mono.HealthStatus {
	if m.service == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "not started",
		}
	}

	backend := "database"
	if m.cfg.RedisAddr != "" {
		backend = "redis"
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"sessions": backend,
		},
	}
}

// Service returns the account service. It is nil until Start has run.
func (m *AccountModule) Service() *AccountService {
	return m.service
}

// RegisterServices registers request-reply services in the service container.
func (m *AccountModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "register", json.Unmarshal, json.Marshal, m.handleRegister,
	); err != nil {
		return fmt.Errorf("failed to register register service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "authenticate", json.Unmarshal, json.Marshal, m.handleAuthenticate,
	); err != nil {
		return fmt.Errorf("failed to register authenticate service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "current-user", json.Unmarshal, json.Marshal, m.handleCurrentUser,
	); err != nil {
		return fmt.Errorf("failed to register current-user service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "resolve-session", json.Unmarshal, json.Marshal, m.handleResolve,
	); err != nil {
		return fmt.Errorf("failed to register resolve-session service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "end-session", json.Unmarshal, json.Marshal, m.handleEndSession,
	); err != nil {
		return fmt.Errorf("failed to register end-session service: %w", err)
	}

	m.logger.Info("Registered services",
		"services", []string{"register", "authenticate", "current-user", "resolve-session", "end-session"})
	return nil
}

func (m *AccountModule) handleRegister(ctx context.Context, req RegisterRequest, _ *mono.Msg) (UserResponse, error) {
	user, err := m.service.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return UserResponse{}, err
	}

	m.logger.Info("User registered", "userID", user.ID)
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}, nil
}

func (m *AccountModule) handleAuthenticate(ctx context.Context, req AuthenticateRequest, _ *mono.Msg) (AuthenticateResponse, error) {
	token, err := m.service.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return AuthenticateResponse{}, err
	}

	return AuthenticateResponse{
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

func (m *AccountModule) handleCurrentUser(ctx context.Context, req SessionRequest, _ *mono.Msg) (UserResponse, error) {
	user, err := m.service.CurrentUser(ctx, req.Token)
	if err != nil {
		return UserResponse{}, err
	}

	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}, nil
}

func (m *AccountModule) handleResolve(ctx context.Context, req SessionRequest, _ *mono.Msg) (ResolveResponse, error) {
	state, err := m.service.Resolve(ctx, req.Token)
	if err != nil {
		return ResolveResponse{}, err
	}

	userID, ok := state.UserID()
	return ResolveResponse{
		Authenticated: ok,
		UserID:        userID,
	}, nil
}

func (m *AccountModule) handleEndSession(ctx context.Context, req SessionRequest, _ *mono.Msg) (EndSessionResponse, error) {
	if err := m.service.EndSession(ctx, req.Token); err != nil {
		return EndSessionResponse{}, err
	}
	return EndSessionResponse{Ended: true}, nil
}

// parseRedisAddr splits "host:port", falling back to 127.0.0.1:6379 for
// missing or invalid parts.
func parseRedisAddr(addr string) (string, int) {
	const defaultHost = "127.0.0.1"
	const defaultPort = 6379

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return defaultHost, defaultPort
	}
	if host == "" {
		host = defaultHost
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = defaultPort
	}
	return host, port
}
