// README: Entry point; loads config, wires the coordination services and optional
// infrastructure, then serves the operator API until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"fleetclaim/internal/config"
	httptransport "fleetclaim/internal/http"
	"fleetclaim/internal/infra"
	"fleetclaim/internal/modules/acceptance"
	"fleetclaim/internal/modules/assignment"
	"fleetclaim/internal/modules/audit"
	"fleetclaim/internal/modules/directory"
	"fleetclaim/internal/modules/eligibility"
	"fleetclaim/internal/modules/fallback"
	"fleetclaim/internal/remote"
)

func main() {
	cfg, err := config.Load(os.Getenv("FLEETCLAIM_CONFIG"))
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := infra.NewLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("FLEETCLAIM_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.WithError(err).Fatal("firebase init")
	}

	client := remote.NewClient(remote.Config{
		BaseURL:        cfg.Remote.BaseURL,
		Timeout:        cfg.Remote.Timeout,
		RetryAttempts:  cfg.Remote.RetryAttempts,
		RetryBaseDelay: cfg.Remote.RetryBaseDelay,
	}, log.WithField("component", "remote"))

	dir := directory.NewService(client, log.WithField("component", "directory"))
	elig := eligibility.NewService(client, client, dir, log.WithField("component", "eligibility"))
	asg := assignment.NewService(client, log.WithField("component", "assignment"))
	selector := fallback.NewSelector(dir, fallback.Config{Placeholder: cfg.Acceptance.PlaceholderFallback}, log.WithField("component", "fallback"))

	deps := acceptance.Deps{
		Claims:      client,
		Orders:      client,
		Eligibility: elig,
		Assignments: asg,
		Selector:    selector,
		Log:         log.WithField("component", "acceptance"),
	}

	var trail *audit.Store
	if cfg.DB.DSN != "" {
		if cfg.DB.Migrate {
			if err := infra.Migrate(cfg.DB.DSN, audit.Migrations, "migrations"); err != nil {
				log.WithError(err).Fatal("migrate audit schema")
			}
		}
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.WithError(err).Fatal("connect database")
		}
		defer pool.Close()
		trail = audit.NewStore(pool)
		deps.Audit = trail
	} else {
		log.Info("db.dsn not set; audit trail disabled")
	}

	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			log.WithError(err).Fatal("connect redis")
		}
		defer rdb.Close()
		deps.Guard = acceptance.NewRedisGuard(rdb, cfg.Redis.ClaimGuardTTL)
	} else {
		log.Info("redis.addr not set; claim guard disabled")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		writer := infra.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer writer.Close()
		deps.Events = acceptance.NewKafkaPublisher(writer)
	} else {
		log.Info("kafka.brokers not set; assignment events disabled")
	}

	serverDeps := httptransport.ServerDeps{
		Directory:   dir,
		Eligibility: elig,
		Assignments: asg,
		Coordinator: acceptance.NewCoordinator(deps),
		Verifier:    verifier,
		Log:         log.WithField("component", "http"),
	}
	if trail != nil {
		serverDeps.Audit = trail
	}

	if err := httptransport.NewServer(serverDeps).Run(ctx, cfg.HTTP.Addr); err != nil {
		log.WithError(err).Fatal("http server")
	}
}
