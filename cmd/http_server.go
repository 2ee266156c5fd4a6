package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/approval"
	approvalPostgres "github.com/frahmantamala/travel-approval/internal/approval/postgres"
	"github.com/frahmantamala/travel-approval/internal/auth"
	authPostgres "github.com/frahmantamala/travel-approval/internal/auth/postgres"
	"github.com/frahmantamala/travel-approval/internal/availability"
	availabilityPostgres "github.com/frahmantamala/travel-approval/internal/availability/postgres"
	"github.com/frahmantamala/travel-approval/internal/core/events"
	"github.com/frahmantamala/travel-approval/internal/department"
	departmentPostgres "github.com/frahmantamala/travel-approval/internal/department/postgres"
	"github.com/frahmantamala/travel-approval/internal/metrics"
	"github.com/frahmantamala/travel-approval/internal/notification"
	notificationPostgres "github.com/frahmantamala/travel-approval/internal/notification/postgres"
	"github.com/frahmantamala/travel-approval/internal/rbac"
	"github.com/frahmantamala/travel-approval/internal/report"
	"github.com/frahmantamala/travel-approval/internal/store"
	"github.com/frahmantamala/travel-approval/internal/transport"
	"github.com/frahmantamala/travel-approval/internal/transport/middleware"
	"github.com/frahmantamala/travel-approval/internal/transport/rest"
	"github.com/frahmantamala/travel-approval/internal/travelrequest"
	requestPostgres "github.com/frahmantamala/travel-approval/internal/travelrequest/postgres"
	"github.com/frahmantamala/travel-approval/internal/user"
	userPostgres "github.com/frahmantamala/travel-approval/internal/user/postgres"
	"github.com/frahmantamala/travel-approval/internal/workflow"
	"github.com/frahmantamala/travel-approval/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config     *internal.Config
	DB         *sqlx.DB
	GormDB     *gorm.DB
	Router     *chi.Mux
	Logger     *slog.Logger
	EventBus   *events.EventBus
	Hub        *notification.Hub
	Dispatcher *notification.Dispatcher
	NATS       *nats.Conn
	Handlers   rest.Handlers
}

func startHTTPServer() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	lg := deps.Logger

	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, deps.Handlers, deps.Config.Server, deps.Config.Observability.Metrics, lg)

	if deps.Config.Observability.Metrics.Enabled {
		go reportPoolStats(ctx, deps.GormDB, lg)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	lg.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		lg.Info("Received signal, shutting down...")
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			lg.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("Server shutdown error", "error", err)
	}

	// handlers are done, so every event is published; let them reach the sinks
	deps.EventBus.Wait()
	deps.Dispatcher.Drain()
	deps.Dispatcher.Shutdown()
	if deps.NATS != nil {
		if err := deps.NATS.Drain(); err != nil {
			lg.Error("NATS drain error", "error", err)
		}
	}
	if err := deps.DB.Close(); err != nil {
		lg.Error("Database close error", "error", err)
	}

	lg.Info("Server stopped")
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"), config.Observability.Logging.Level)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	gdb, err := initGorm(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	deps := &Dependencies{
		Config:   config,
		DB:       db,
		GormDB:   gdb,
		Router:   chi.NewRouter(),
		Logger:   lg,
		EventBus: events.NewEventBus(lg),
		Hub:      notification.NewHub(lg),
	}
	go deps.Hub.Run(ctx)

	baseHandler := transport.NewBaseHandler(lg)

	// directory
	users := user.NewService(userPostgres.NewUserRepository(gdb), rbac.NewResolver(config.RBAC.AdminEmails), lg)
	departments := department.NewService(departmentPostgres.NewDepartmentRepository(gdb), lg)

	// auth
	authRepo := authPostgres.NewRepository(gdb)
	tokenGen := auth.NewJWTTokenGenerator(
		config.Security.JWTSecret,
		config.Security.JWTRefreshSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(authRepo, tokenGen, config.Security.BCryptCost, lg)
	reauth := auth.NewReauthenticator(authRepo, config.Security.ReauthTimeout, lg)

	// notifications: the inbox sink runs first so later sinks see the stored id
	inbox := notification.NewService(notificationPostgres.NewNotificationRepository(gdb), lg)
	sinks := []notification.Sink{inbox, deps.Hub}
	var checks []rest.Check
	if config.Notification.NATSURL != "" {
		nc, err := notification.ConnectNATS(config.Notification.NATSURL, lg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		deps.NATS = nc
		sinks = append(sinks, notification.NewNATSSink(nc, config.Notification.SubjectPrefix, lg))
		checks = append(checks, rest.Check{Name: "nats", Probe: func(context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("nats status %s", nc.Status())
			}
			return nil
		}})
	}
	if config.Notification.WebhookURL != "" {
		sinks = append(sinks, notification.NewWebhookSink(config.Notification.WebhookURL, &http.Client{Timeout: config.Notification.Timeout}))
	}
	deps.Dispatcher = notification.NewDispatcher(config.Notification, lg, sinks...)
	deps.Dispatcher.Start()
	notification.NewEventHandler(deps.Dispatcher, users, lg).RegisterEventHandlers(deps.EventBus)

	// workflow
	coordinator := approval.NewCoordinator(approvalPostgres.NewApprovalRepository(gdb), lg)
	checker := availability.NewChecker(availabilityPostgres.NewAvailabilityRepository(db), lg, config.Availability)
	requestRepo := requestPostgres.NewRequestRepository(gdb)
	requests := travelrequest.NewService(travelrequest.Deps{
		Repo:         requestRepo,
		Tx:           store.NewTxManager(gdb),
		Engine:       workflow.NewEngine(workflow.Options{RequireExecutive: config.Workflow.RequireExecutive}),
		Approvals:    coordinator,
		Availability: checker,
		Departments:  departments,
		Directory:    users,
		Reauth:       reauth,
		Events:       deps.EventBus,
		Config:       config.Workflow,
		Logger:       lg,
	})
	canView := func(ctx context.Context, requestID string, actor *rbac.Actor) error {
		_, err := requests.Get(ctx, requestID, actor)
		return err
	}

	deps.Handlers = rest.Handlers{
		Auth:         auth.NewHandler(baseHandler, authService, users),
		User:         user.NewHandler(baseHandler, users),
		Department:   department.NewHandler(baseHandler, departments),
		Request:      travelrequest.NewHandler(baseHandler, requests),
		Approval:     approval.NewHandler(baseHandler, coordinator, canView, requests.AuthorizeInvite),
		Notification: notification.NewHandler(baseHandler, inbox, deps.Hub, middleware.SplitOrigins(config.Server.AllowedOrigins)),
		Report:       report.NewHandler(baseHandler, report.NewExporter(requestRepo, lg)),
		HealthChecks: checks,
	}

	if config.Server.OpenAPIValidation {
		doc, err := middleware.LoadOpenAPI(ctx, rest.OpenAPIPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load openapi document: %w", err)
		}
		validator, err := middleware.NewOpenAPIValidator(baseHandler, doc, rest.APIPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to build openapi validator: %w", err)
		}
		deps.Handlers.Validator = validator
	}

	return deps, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx pool with gorm so both see one set of connections.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}

func reportPoolStats(ctx context.Context, gdb *gorm.DB, lg *slog.Logger) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := metrics.UpdateDatabaseConnections(gdb); err != nil {
				lg.Warn("failed to read pool stats", "error", err)
			}
		}
	}
}
