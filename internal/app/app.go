package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"exchange-hub-go/internal/cache"
	"exchange-hub-go/internal/config"
	"exchange-hub-go/internal/db"
	auditdomain "exchange-hub-go/internal/domain/audit"
	dashboarddomain "exchange-hub-go/internal/domain/dashboard"
	documentdomain "exchange-hub-go/internal/domain/document"
	entitysyncdomain "exchange-hub-go/internal/domain/entitysync"
	exchangedomain "exchange-hub-go/internal/domain/exchange"
	invitationdomain "exchange-hub-go/internal/domain/invitation"
	notificationdomain "exchange-hub-go/internal/domain/notification"
	participantdomain "exchange-hub-go/internal/domain/participant"
	"exchange-hub-go/internal/domain/permission"
	taskdomain "exchange-hub-go/internal/domain/task"
	userdomain "exchange-hub-go/internal/domain/user"
	"exchange-hub-go/internal/events"
	"exchange-hub-go/internal/practicepanther"
	"exchange-hub-go/internal/repository/inmemory"
	auditrepo "exchange-hub-go/internal/repository/postgres/audit"
	dashboardrepo "exchange-hub-go/internal/repository/postgres/dashboard"
	documentrepo "exchange-hub-go/internal/repository/postgres/document"
	entitysyncrepo "exchange-hub-go/internal/repository/postgres/entitysync"
	exchangerepo "exchange-hub-go/internal/repository/postgres/exchange"
	invitationrepo "exchange-hub-go/internal/repository/postgres/invitation"
	notificationrepo "exchange-hub-go/internal/repository/postgres/notification"
	participantrepo "exchange-hub-go/internal/repository/postgres/participant"
	taskrepo "exchange-hub-go/internal/repository/postgres/task"
	userrepo "exchange-hub-go/internal/repository/postgres/user"
	"exchange-hub-go/internal/storage"
	"exchange-hub-go/internal/transport/httpserver"
	"exchange-hub-go/internal/transport/httpserver/handler"
	"exchange-hub-go/internal/transport/httpserver/handler/admin"
	commonhandler "exchange-hub-go/internal/transport/httpserver/handler/common"
	dashboardhandler "exchange-hub-go/internal/transport/httpserver/handler/dashboard"
	documenthandler "exchange-hub-go/internal/transport/httpserver/handler/documents"
	exchangehandler "exchange-hub-go/internal/transport/httpserver/handler/exchanges"
	invitationhandler "exchange-hub-go/internal/transport/httpserver/handler/invitations"
	notificationhandler "exchange-hub-go/internal/transport/httpserver/handler/notifications"
	taskhandler "exchange-hub-go/internal/transport/httpserver/handler/tasks"
	userhandler "exchange-hub-go/internal/transport/httpserver/handler/users"
	"exchange-hub-go/pkg/logger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services is every domain service, wired to its repositories.
type Services struct {
	Permissions   *permission.Service
	Audit         *auditdomain.Service
	Users         *userdomain.Service
	Notifications *notificationdomain.Service
	Exchanges     *exchangedomain.Service
	Participants  *participantdomain.Service
	Invitations   *invitationdomain.Service
	Tasks         *taskdomain.Service
	Documents     *documentdomain.Service
	EntitySync    *entitysyncdomain.Service
	Dashboard     *dashboarddomain.Service
}

type App struct {
	cfg        config.Config
	log        logger.Logger
	db         *gorm.DB
	redis      *redis.Client
	publisher  events.Publisher
	services   *Services
	httpServer *http.Server
}

func New(ctx context.Context, log logger.Logger) (*App, error) {
	log.Info("app: loading config")
	cfg, err := config.Load(log)
	if err != nil {
		return nil, err
	}

	log.Info("app: initializing database")
	dbConn, err := db.NewPostgres(cfg.DB, log)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, log: log, db: dbConn}

	if cfg.DB.AutoMigrate {
		log.Info("app: applying migrations")
		if err := db.Migrate(dbConn); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	permCache, err := a.permissionCache(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.publisher, err = newPublisher(cfg.Kafka, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	store, err := newStore(ctx, cfg.Storage, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	table, err := loadPermissionTable(cfg.PermissionsFile)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	templates, err := loadTemplates(cfg.TemplatesFile)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	log.Info("app: initializing services")
	a.services = a.buildServices(table, permCache, templates, store)

	log.Info("app: initializing router")
	router := httpserver.NewRouter(cfg, a.handlers(store), a.services.Users, log)
	a.httpServer = httpserver.New(cfg, router)

	return a, nil
}

func (a *App) buildServices(table *permission.Table, permCache permission.Cache, templates *notificationdomain.Templates, store *storage.MinioStore) *Services {
	cfg, log := a.cfg, a.log
	participants := participantrepo.NewPostgres(a.db)

	permissions := permission.NewService(table, participantdomain.NewAssignmentSource(participants), permCache, cfg.Redis.PermissionsTTL, log)
	audit := auditdomain.NewService(auditrepo.NewPostgres(a.db), permissions, log)
	users := userdomain.NewService(userrepo.NewPostgres(a.db), audit, log)
	notifications := notificationdomain.NewService(notificationrepo.NewPostgres(a.db), templates, audit, log)
	participantService := participantdomain.NewService(participants, permissions, a.publisher, audit, log)

	var documentStore documentdomain.Storage
	if store != nil {
		documentStore = store
	}

	var fetcher entitysyncdomain.MatterFetcher
	if cfg.PracticePanther.Enabled() {
		fetcher = practicepanther.NewClient(cfg.PracticePanther, log)
	}

	return &Services{
		Permissions:   permissions,
		Audit:         audit,
		Users:         users,
		Notifications: notifications,
		Exchanges:     exchangedomain.NewService(exchangerepo.NewPostgres(a.db), permissions, a.publisher, notifications, log),
		Participants:  participantService,
		Invitations: invitationdomain.NewService(invitationrepo.NewPostgres(a.db), invitationdomain.Deps{
			Permissions:  permissions,
			Participants: participantService,
			Users:        users,
			Notifier:     notifications,
			Publisher:    a.publisher,
			Auditor:      audit,
		}, cfg.InvitationTTL, log),
		Tasks: taskdomain.NewService(taskrepo.NewPostgres(a.db), permissions, notifications, a.publisher, audit, log),
		Documents: documentdomain.NewService(documentrepo.NewPostgres(a.db), documentStore, permissions, notifications, a.publisher, audit, documentdomain.Options{
			MaxUploadBytes: cfg.Storage.MaxUploadBytes,
			PresignTTL:     cfg.Storage.PresignTTL,
		}, log),
		EntitySync: entitysyncdomain.NewService(entitysyncrepo.NewPostgres(a.db), fetcher, a.publisher, audit, entitysyncdomain.Options{
			Rate:        cfg.EntitySync.Rate,
			Burst:       cfg.EntitySync.Burst,
			Concurrency: cfg.EntitySync.Concurrency,
		}, log),
		Dashboard: dashboarddomain.NewService(dashboardrepo.NewPostgres(a.db), dashboarddomain.Config{
			WindowDays:    cfg.Dashboard.WindowDays,
			DeadlineLimit: cfg.Dashboard.DeadlineLimit,
			CacheTTL:      cfg.Dashboard.CacheTTL,
		}, log),
	}
}

func (a *App) handlers(store *storage.MinioStore) *handler.Handlers {
	s, log := a.services, a.log

	checks := []commonhandler.Check{{Name: "postgres", Ping: func(ctx context.Context) error { return db.Ping(ctx, a.db) }}}
	if a.redis != nil {
		checks = append(checks, commonhandler.Check{Name: "redis", Ping: func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }})
	}
	if store != nil {
		checks = append(checks, commonhandler.Check{Name: "storage", Ping: store.Ping})
	}

	return &handler.Handlers{
		Health:        commonhandler.NewHealth(log, checks...),
		Exchanges:     exchangehandler.New(s.Exchanges, s.Participants, s.Audit, log),
		Invitations:   invitationhandler.New(s.Invitations, log),
		Tasks:         taskhandler.New(s.Tasks, log),
		Documents:     documenthandler.New(s.Documents, log),
		Notifications: notificationhandler.New(s.Notifications, log),
		Users:         userhandler.New(s.Users, log),
		Admin:         admin.New(s.EntitySync, s.Audit, log),
		Dashboard:     dashboardhandler.New(s.Dashboard, log),
	}
}

// permissionCache uses Redis when REDIS_URL is set and a process-local cache
// otherwise.
func (a *App) permissionCache(ctx context.Context) (permission.Cache, error) {
	if a.cfg.Redis.URL == "" {
		a.log.Warn("app: REDIS_URL not set, permission cache is process-local")
		return inmemory.NewInMemoryPermissionCache(), nil
	}
	client, err := cache.Connect(ctx, a.cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	a.redis = client
	return cache.NewPermissionCache(client, a.log), nil
}

func newPublisher(cfg config.KafkaConfig, log logger.Logger) (events.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		log.Warn("app: KAFKA_BROKERS not set, events are only logged")
		return events.NewLogPublisher(log), nil
	}
	return events.NewKafkaPublisher(cfg.Brokers, cfg.TopicPrefix)
}

func newStore(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (*storage.MinioStore, error) {
	if !cfg.Enabled() {
		log.Warn("app: object storage not configured, document uploads are disabled")
		return nil, nil
	}
	return storage.NewMinioStore(ctx, cfg)
}

func loadPermissionTable(path string) (*permission.Table, error) {
	if path == "" {
		return permission.DefaultTable(), nil
	}
	return permission.LoadTableFile(path)
}

func loadTemplates(path string) (*notificationdomain.Templates, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open notification templates: %w", err)
	}
	defer f.Close()
	return notificationdomain.LoadTemplates(f)
}

func (a *App) Config() config.Config {
	return a.cfg
}

func (a *App) Services() *Services {
	return a.services
}

func (a *App) HTTPServer() *http.Server {
	return a.httpServer
}

func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		sqlDB, err := a.db.DB()
		if err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
