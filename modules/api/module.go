package api

import (
	"context"
	"fmt"
	"time"

	"github.com/example/task-tracker/config"
	"github.com/example/task-tracker/middleware/ratelimit"
	"github.com/example/task-tracker/modules/account"
	"github.com/example/task-tracker/modules/activity"
	"github.com/example/task-tracker/modules/task"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

// APIModule is the HTTP API module.
type APIModule struct {
	app          *fiber.App
	accounts     account.AccountPort
	tasks        task.TaskPort
	activity     activity.ActivityPort
	redis        *redis.Client
	addr         string
	secureCookie bool
	throttle     config.LoginThrottleConfig
	logger       types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*APIModule)(nil)
	_ mono.DependentModule       = (*APIModule)(nil)
	_ mono.HealthCheckableModule = (*APIModule)(nil)
)

// NewModule creates a new APIModule listening on addr.
func NewModule(addr string, secureCookie bool, throttle config.LoginThrottleConfig, logger types.Logger) *APIModule {
	return &APIModule{
		addr:         addr,
		secureCookie: secureCookie,
		throttle:     throttle,
		logger:       logger,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"account", "task", "activity"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "account":
		m.accounts = account.NewAccountAdapter(container)
	case "task":
		m.tasks = task.NewTaskAdapter(container)
	case "activity":
		m.activity = activity.NewActivityAdapter(container)
	}
}

// Start connects the login throttle, if configured, and starts the Fiber
// HTTP server.
func (m *APIModule) Start(ctx context.Context) error {
	if m.accounts == nil {
		return fmt.Errorf("account dependency not set")
	}
	if m.tasks == nil {
		return fmt.Errorf("task dependency not set")
	}
	if m.activity == nil {
		return fmt.Errorf("activity dependency not set")
	}

	var throttle fiber.Handler
	if m.throttle.RedisAddr != "" {
		limiter, err := m.connectLimiter(ctx)
		if err != nil {
			return err
		}
		throttle = ratelimit.ByIP(limiter, m.throttle.Limit, m.logger)
	}

	m.app = newApp(NewHandlers(m.accounts, m.tasks, m.activity, m.logger, m.secureCookie), throttle, m.logger)

	go func() {
		if err := m.app.Listen(m.addr); err != nil {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("HTTP server started", "addr", m.addr, "loginThrottle", throttle != nil)
	return nil
}

func (m *APIModule) connectLimiter(ctx context.Context) (*ratelimit.SlidingWindowLimiter, error) {
	cfg := ratelimit.Config{
		Limit:     m.throttle.Limit,
		Window:    m.throttle.Window,
		KeyPrefix: "ratelimit:login:",
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid login throttle configuration: %w", err)
	}

	m.redis = redis.NewClient(&redis.Options{
		Addr:         m.throttle.RedisAddr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.redis.Ping(pingCtx).Err(); err != nil {
		m.redis.Close()
		m.redis = nil
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", m.throttle.RedisAddr, err)
	}

	return ratelimit.NewSlidingWindowLimiter(m.redis, cfg), nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app != nil {
		m.logger.Info("Shutting down HTTP server")
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shut down HTTP server: %w", err)
		}
	}
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			m.logger.Warn("Failed to close Redis connection", "error", err)
		}
	}
	return nil
}

// Health returns the health status of the module.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	if m.app == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "not started",
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"addr":          m.addr,
			"loginThrottle": m.redis != nil,
		},
	}
}

// newApp builds the Fiber application and its routes. throttle guards the
// credential endpoints and may be nil.
func newApp(h *Handlers, throttle fiber.Handler, log types.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New())

	credentials := []fiber.Handler{}
	if throttle != nil {
		credentials = append(credentials, throttle)
	}

	app.Get("/", h.Landing)
	app.Get("/health", h.Health)

	app.Get("/register", h.RegisterForm)
	app.Post("/register", append(credentials, h.Register)...)
	app.Get("/login", h.LoginForm)
	app.Post("/login", append(credentials, h.Login)...)

	session := SessionMiddleware(h.accounts, log)

	app.Get("/logout", session, h.Logout)
	app.Get("/tasks", session, h.ListTasks)
	app.Post("/tasks", session, h.CreateTask)
	app.Get("/delete/:id", session, h.DeleteTask)
	app.Get("/update/:id", session, h.GetTask)
	app.Post("/update/:id", session, h.UpdateTask)
	app.Get("/activity", session, h.ListActivity)

	return app
}
