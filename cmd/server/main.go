package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opsdeck/internal/audit"
	auditkafka "opsdeck/internal/audit/kafka"
	"opsdeck/internal/auth/cookies"
	authservice "opsdeck/internal/auth/service"
	refreshtokenstore "opsdeck/internal/auth/store/refreshtoken"
	sessionstore "opsdeck/internal/auth/store/session"
	userstore "opsdeck/internal/auth/store/user"
	directoryservice "opsdeck/internal/directory/service"
	directorystore "opsdeck/internal/directory/store"
	"opsdeck/internal/gate"
	orgservice "opsdeck/internal/org/service"
	orgstore "opsdeck/internal/org/store"
	"opsdeck/internal/platform/config"
	"opsdeck/internal/platform/httpserver"
	"opsdeck/internal/platform/logger"
	"opsdeck/internal/platform/metrics"
	platformpostgres "opsdeck/internal/platform/postgres"
	platformredis "opsdeck/internal/platform/redis"
	httptransport "opsdeck/internal/transport/http"
)

// main wires dependencies and owns the server lifecycle. Store backends
// are chosen by configuration presence: Postgres/Redis when configured,
// in-memory otherwise.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := platformpostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var auditor audit.Publisher = audit.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub, err := auditkafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("kafka init failed", "error", err)
			os.Exit(1)
		}
		defer kafkaPub.Close()
		auditor = kafkaPub
	}

	m := metrics.New()

	var (
		users    authservice.UserStore
		sessions authservice.SessionStore
		tokens   authservice.RefreshTokenStore
		super    directoryservice.SuperadminChecker
	)
	if pool != nil {
		pgUsers := userstore.NewPostgres(pool)
		users, super = pgUsers, pgUsers
		tokens = refreshtokenstore.NewPostgres(pool)
	} else {
		memUsers := userstore.NewInMemory()
		users, super = memUsers, memUsers
		tokens = refreshtokenstore.NewInMemory()
	}
	if redisClient != nil {
		sessions = sessionstore.NewRedis(redisClient.Client)
	} else {
		sessions = sessionstore.NewInMemory()
	}

	var orgs orgservice.OrgStore
	var directory directoryservice.DirectoryStore
	if pool != nil {
		orgs = orgstore.NewPostgres(pool)
		directory = directorystore.NewPostgres(pool)
	} else {
		orgs = orgstore.NewInMemory()
		directory = directorystore.NewInMemory()
	}

	authSvc := authservice.New(users, sessions, tokens,
		authservice.Config{
			JWTSigningKey:   []byte(cfg.JWTSigningKey),
			AccessTokenTTL:  cfg.AccessTokenTTL,
			RefreshTokenTTL: cfg.RefreshTokenTTL,
			SessionTTL:      cfg.SessionTTL,
		},
		authservice.WithLogger(log),
		authservice.WithMetrics(m),
		authservice.WithAuditPublisher(auditor),
	)
	orgSvc := orgservice.New(orgs, cfg.BaseHost,
		orgservice.WithLogger(log),
		orgservice.WithMetrics(m),
	)
	dirSvc := directoryservice.New(directory, super,
		directoryservice.WithLogger(log),
		directoryservice.WithMetrics(m),
	)

	cookiePolicy := cookies.Policy{Domain: cfg.BaseHost, Secure: cfg.SecureCookies}
	requestGate := gate.New(authSvc, orgSvc,
		gate.Config{
			LoginURL:      cfg.LoginURL,
			CookiePolicy:  cookiePolicy,
			LookupTimeout: cfg.ExternalCallTimeout,
		},
		gate.WithLogger(log),
		gate.WithMetrics(m),
		gate.WithAuditPublisher(auditor),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Gate:        requestGate,
		Permissions: dirSvc,
		Auth:        httptransport.NewAuthHandler(authSvc, cookiePolicy),
		Orgs:        httptransport.NewOrgHandler(orgSvc),
		Directory:   httptransport.NewDirectoryHandler(dirSvc),
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("opsdeck listening", "addr", cfg.Addr, "base_host", cfg.BaseHost)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
