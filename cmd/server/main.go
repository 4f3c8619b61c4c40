package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/afterword/backend/internal/config"
	"github.com/afterword/backend/internal/handler"
	"github.com/afterword/backend/internal/identity"
	"github.com/afterword/backend/internal/logging"
	"github.com/afterword/backend/internal/metrics"
	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/notify"
	"github.com/afterword/backend/internal/repository"
	"github.com/afterword/backend/internal/repository/memstore"
	"github.com/afterword/backend/internal/service"
	"github.com/afterword/backend/internal/storage"
	"github.com/afterword/backend/internal/worker"
	"github.com/afterword/backend/pkg/auth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// stores groups the repository implementations selected by DATABASE_URL.
type stores struct {
	db            repository.DB
	users         repository.UserRepository
	contacts      repository.ContactRepository
	videos        repository.VideoRepository
	audit         repository.AuditRepository
	notifications repository.NotificationRepository
	tx            repository.ReleaseTx
	close         func()
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	if cfg.UseMemoryStore() {
		s := memstore.New()
		// 開発用ユーザー（DevAuth の既定 ID、管理者）
		s.AddUser(&model.User{ID: auth.DevUserID, Email: "dev@afterword.local", Name: "Dev User", IsAdmin: true})
		slog.Warn("using in-memory store; data is lost on restart")
		return &stores{
			db:            s,
			users:         s.Users(),
			contacts:      s.Contacts(),
			videos:        s.Videos(),
			audit:         s.Audit(),
			notifications: s.Notifications(),
			tx:            s,
			close:         func() {},
		}, nil
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &stores{
		db:            pool,
		users:         repository.NewPgUserRepository(pool),
		contacts:      repository.NewPgContactRepository(pool),
		videos:        repository.NewPgVideoRepository(pool),
		audit:         repository.NewPgAuditRepository(pool),
		notifications: repository.NewPgNotificationRepository(pool),
		tx:            repository.NewPgReleaseTx(pool),
		close:         pool.Close,
	}, nil
}

func identityCache(ctx context.Context, cfg config.Config) identity.Cache {
	if cfg.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logging.Fatal("invalid REDIS_URL", "error", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		// 起動時に Redis が無くてもキャッシュ無しと同じ動作になる
		slog.Warn("redis unreachable; identity cache will miss", "error", err)
	}
	return identity.NewRedisCache(client, cfg.IdentityCacheTTL)
}

func mailer(cfg config.Config) notify.Mailer {
	if cfg.SMTPHost == "" {
		slog.Info("SMTP_HOST not set; e-mails are logged only")
		return notify.LogMailer{}
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("invalid configuration", "error", err)
	}
	logging.Setup(cfg.LogLevel)

	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		logging.Fatal("failed to connect to database", "error", err)
	}
	defer st.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var publisher notify.Publisher
	if cfg.AMQPURL != "" {
		publisher = notify.NewAMQPPublisher(cfg.AMQPURL)
	}
	dispatcher := notify.NewDispatcher(notify.Config{
		Mailer:        mailer(cfg),
		Notifications: st.notifications,
		Publisher:     publisher,
		Metrics:       m,
		Regular:       cfg.NotifyRegular,
		FrontendURL:   cfg.FrontendURL,
	})

	resolver := identity.NewDirectoryResolver(st.users, identityCache(ctx, cfg))
	policy := service.DefaultReleasePolicy()
	if len(cfg.InitiatorRoles) > 0 {
		policy.InitiatorRoles = cfg.InitiatorRoles
	}
	gate := service.NewAuthorizationGate(st.contacts, st.users, policy)
	contactService := service.NewContactService(st.contacts, st.users, resolver, dispatcher)
	lifecycleService := service.NewLifecycleService(st.contacts, resolver, m)
	releaseService := service.NewReleaseService(gate, st.users, st.audit, st.tx, dispatcher, m)
	mediaService := service.NewMediaService(st.videos, gate,
		storage.NewHMACSigner(cfg.MediaBaseURL, []byte(cfg.MediaSigningKey), cfg.MediaURLTTL))
	admins := service.NewAdminAuthorizer(st.users)

	// 認証必要エンドポイント
	wrapAuth := auth.DevAuth
	if cfg.AuthRequired {
		wrapAuth = auth.RequireAuth(auth.SessionSecretBytes(cfg.SessionSecret))
	} else {
		slog.Warn("AUTH_REQUIRED is not true; every request runs as the dev user")
	}

	router := handler.Router(handler.Routes{
		Base:           handler.New(st.db, cfg.FrontendURL),
		Contacts:       handler.NewContactHandler(contactService, lifecycleService),
		Relationships:  handler.NewRelationshipHandler(contactService, st.notifications),
		Release:        handler.NewReleaseHandler(releaseService),
		Media:          handler.NewMediaHandler(mediaService),
		Admin:          handler.NewAdminHandler(releaseService, lifecycleService),
		Auth:           wrapAuth,
		RequireAdmin:   auth.RequireAdmin(admins.IsAdmin),
		ConfirmLimiter: handler.NewRateLimiter(cfg.ConfirmRatePerMinute),
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	scheduler, err := worker.NewReconcileScheduler(slog.Default(), lifecycleService, cfg.ReconcileSchedule, 10*time.Minute)
	if err != nil {
		logging.Fatal("invalid reconcile schedule", "error", err)
	}
	if scheduler != nil {
		scheduler.Start()
	}

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}

	done := make(chan struct{})
	go func() {
		dispatcher.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		slog.Warn("notifications still in flight at shutdown")
	}
}
