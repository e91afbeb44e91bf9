package main

import (
	"context"
	"log"
	"os"

	"github.com/example/task-tracker/config"
	"github.com/example/task-tracker/modules/account"
	"github.com/example/task-tracker/modules/activity"
	"github.com/example/task-tracker/modules/api"
	"github.com/example/task-tracker/modules/store"
	"github.com/example/task-tracker/modules/task"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Task Tracker ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	logger := app.Logger()

	// The framework calls SetPlugin("database", ...) on every module that
	// implements UsePluginModule.
	if err := app.RegisterPlugin(store.NewPluginModule(cfg.Database, logger.WithModule("database")), "database"); err != nil {
		log.Fatalf("Failed to register database plugin: %v", err)
	}

	// Order: independent modules first, then dependent modules
	app.Register(activity.NewModule(logger.WithModule("activity")))
	app.Register(account.NewModule(cfg.Session, cfg.StoreTimeout, logger.WithModule("account")))
	app.Register(task.NewModule(cfg.StoreTimeout, logger.WithModule("task")))
	app.Register(api.NewModule(cfg.HTTPAddr, cfg.Session.SecureCookie, cfg.Login, logger.WithModule("api")))

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Printf("Database: %s", cfg.Database.Driver)
	if cfg.Session.RedisAddr != "" {
		log.Printf("Sessions: redis at %s", cfg.Session.RedisAddr)
	} else {
		log.Println("Sessions: database")
	}
	if cfg.Login.RedisAddr != "" {
		log.Printf("Login throttle: %d per %s", cfg.Login.Limit, cfg.Login.Window)
	}
	log.Println("")
	log.Printf("Endpoints (%s):", cfg.HTTPAddr)
	log.Println("  GET    /                - Landing page")
	log.Println("  GET    /health          - Health check")
	log.Println("  GET    /register        - Registration form")
	log.Println("  POST   /register        - Create an account")
	log.Println("  GET    /login           - Login form")
	log.Println("  POST   /login           - Open a session")
	log.Println("")
	log.Println("  Session required:")
	log.Println("  GET    /logout          - End the session")
	log.Println("  GET    /tasks           - List your tasks")
	log.Println("  POST   /tasks           - Create a task")
	log.Println("  GET    /update/:id      - Edit form for a task")
	log.Println("  POST   /update/:id      - Update a task")
	log.Println("  GET    /delete/:id      - Delete a task")
	log.Println("  GET    /activity        - Your task activity trail")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
