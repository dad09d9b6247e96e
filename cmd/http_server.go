package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/employee-onboarding/api"
	"github.com/frahmantamala/employee-onboarding/internal"
	"github.com/frahmantamala/employee-onboarding/internal/auth"
	adminJSON "github.com/frahmantamala/employee-onboarding/internal/auth/jsonfile"
	adminPostgres "github.com/frahmantamala/employee-onboarding/internal/auth/postgres"
	"github.com/frahmantamala/employee-onboarding/internal/core/events"
	"github.com/frahmantamala/employee-onboarding/internal/credential"
	"github.com/frahmantamala/employee-onboarding/internal/employee"
	employeeJSON "github.com/frahmantamala/employee-onboarding/internal/employee/jsonfile"
	employeePostgres "github.com/frahmantamala/employee-onboarding/internal/employee/postgres"
	"github.com/frahmantamala/employee-onboarding/internal/storage"
	"github.com/frahmantamala/employee-onboarding/internal/transport"
	"github.com/frahmantamala/employee-onboarding/internal/transport/rest"
	"github.com/frahmantamala/employee-onboarding/internal/web"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server serving the JSON API, the admin pages and the swagger UI`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer(cmd.Context())
	},
}

// Stores are the two repositories behind the services, whichever backend
// the config selects.
type Stores struct {
	Employees employee.RepositoryAPI
	Admins    auth.RepositoryAPI
	DB        *gorm.DB
}

func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type Dependencies struct {
	Config    *internal.Config
	Logger    *slog.Logger
	Stores    *Stores
	EventBus  *events.EventBus
	Employees *employee.Service
	Auth      *auth.Service
	Router    *chi.Mux
}

func startHTTPServer(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	log := deps.Logger

	if err := setupRoutes(deps); err != nil {
		log.Error("failed to set up routes", "error", err)
		os.Exit(1)
	}

	cfg := deps.Config.Server
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           deps.Router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	log.Info("Starting HTTP server", "address", server.Addr, "storage", deps.Config.Storage.Driver)

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down...", "signal", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown error", "error", err)
		}
		if err := deps.EventBus.Wait(shutdownCtx); err != nil {
			log.Warn("event handlers still running at shutdown", "error", err)
		}
		if err := deps.Stores.Close(); err != nil {
			log.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	log.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) error {
	base := transport.NewBaseHandler(deps.Logger)
	secure := deps.Config.Security.SecureCookies

	pages, err := web.NewHandler(base, deps.Employees, deps.Auth, secure)
	if err != nil {
		return fmt.Errorf("parse page templates: %w", err)
	}

	rest.RegisterAllRoutes(deps.Router, rest.Handlers{
		Auth:     auth.NewHandler(base, deps.Auth, secure),
		Employee: employee.NewHandler(base, deps.Employees),
		Web:      pages,
		Health: rest.NewHealthHandler(map[string]rest.Checker{
			"employees": deps.Employees,
			"admins":    deps.Auth,
		}),
	}, deps.Logger)
	return nil
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := initLogger(config)

	if _, err := api.Load(ctx); err != nil {
		return nil, err
	}

	stores, err := openStores(ctx, config, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	bus := newEventBus(config, log)
	employees, authService := newServices(config, stores, bus, log)

	generated, err := authService.EnsureAdmin(ctx, config.Security.AdminPassword)
	if err != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("failed to provision admin: %w", err)
	}
	if generated != "" {
		// shown once; only the hash is stored
		log.Warn("generated admin password, change it with `admin set-password`",
			"admin_id", auth.AdminID, "password", generated)
	}

	return &Dependencies{
		Config:    config,
		Logger:    log,
		Stores:    stores,
		EventBus:  bus,
		Employees: employees,
		Auth:      authService,
		Router:    chi.NewRouter(),
	}, nil
}

// openStores builds the repositories for the configured driver. The
// sqlite backend migrates itself; postgres expects `migrate` to have run.
func openStores(ctx context.Context, cfg *internal.Config, log *slog.Logger) (*Stores, error) {
	mode, err := storage.ParseUpdateMode(cfg.Storage.UpdateMode)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.Driver == internal.StorageDriverJSON {
		employees, err := employeeJSON.Open(cfg.Storage.EmployeesFile, mode, log)
		if err != nil {
			return nil, err
		}
		admins, err := adminJSON.Open(cfg.Storage.AdminsFile, log)
		if err != nil {
			return nil, err
		}
		return &Stores{Employees: employees, Admins: admins}, nil
	}

	db, err := storage.OpenGorm(cfg.Storage.Driver, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	stores := &Stores{
		Employees: employeePostgres.NewEmployeeRepository(db, mode),
		Admins:    adminPostgres.NewAdminRepository(db),
		DB:        db,
	}

	sqlDB, err := db.DB()
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	if cfg.Storage.Driver == internal.StorageDriverSQLite {
		if err := storage.Migrate(ctx, sqlDB, cfg.Storage.Driver, storage.MigrateUp, ""); err != nil {
			_ = stores.Close()
			return nil, err
		}
	}
	if version, err := storage.SchemaVersion(ctx, sqlDB, cfg.Storage.Driver); err != nil || version == 0 {
		log.Warn("database schema is not migrated, run `migrate` first", "error", err)
	}
	return stores, nil
}

func newEventBus(cfg *internal.Config, log *slog.Logger) *events.EventBus {
	bus := events.NewEventBus(log)
	events.RegisterAuditLogger(bus, log)
	if cfg.Events.AMQPURL != "" {
		events.NewAMQPForwarder(cfg.Events.AMQPURL, cfg.Events.Queue, log).
			Register(bus, events.EmployeeOnboardedEventType)
		log.Info("forwarding onboarding events", "queue", cfg.Events.Queue)
	}
	return bus
}

func newServices(cfg *internal.Config, stores *Stores, bus events.Publisher, log *slog.Logger) (*employee.Service, *auth.Service) {
	hasher := credential.NewHasher(cfg.Security.BCryptCost)
	sessions := auth.NewSessionManager(credential.NewTokenizer(cfg.Security.SessionTTL))

	employees := employee.NewService(stores.Employees, hasher, bus, employee.Options{
		MinimumAge:      cfg.Onboarding.MinimumAge,
		WorkEmailDomain: cfg.Onboarding.WorkEmailDomain,
	}, log)
	authService := auth.NewService(stores.Admins, hasher, sessions, bus, log)
	return employees, authService
}
