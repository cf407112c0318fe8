package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"liaison/internal/adapters/mailer"
	"liaison/internal/adapters/opener"
	"liaison/internal/adapters/realtime"
	"liaison/internal/config"
	"liaison/internal/handlers"
	"liaison/internal/observability/logger"
	"liaison/internal/observability/metrics"
	"liaison/internal/ports"
	"liaison/internal/repository/audit"
	"liaison/internal/repository/database"
	importitems "liaison/internal/repository/imports"
	"liaison/internal/repository/memory"
	"liaison/internal/services/importer"
	"liaison/internal/services/importer/processors"
	"liaison/internal/services/negotiation"
	"liaison/internal/services/plans"
	"liaison/internal/services/relationships"
	"liaison/internal/services/reminders"
	"liaison/internal/services/scoring"
	"liaison/internal/transport/auth"
	"liaison/internal/transport/ratelimit"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// app holds the wired services for one process.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.DomainMetrics

	store         ports.Store
	broker        realtime.Broker
	scoreEvents   *audit.ScoreEvents
	relationships *relationships.Service
	plans         *plans.Service
	negotiation   *negotiation.Service
	reminders     *reminders.Dispatcher
	importer      *importer.Service
	records       *importitems.Tracker
}

func newLogger(s config.Settings) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:       s.LogLevel,
		Format:      s.LogFormat,
		ServiceName: "liaison",
		Environment: s.Environment,
	})
}

func buildApp(ctx context.Context, s config.Settings, log *zap.Logger) (*app, error) {
	policy, err := scoring.LoadPolicy(s.PolicyPath)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Connect(ctx, s, log)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics.DomainWithConfig(metrics.Config{ServiceName: "liaison", Environment: s.Environment}),
	}

	var directory ports.Directory
	switch s.Store {
	case config.StoreMemory:
		mem := memory.New()
		a.store, directory = mem, mem
		log.Warn("using in-memory store, data is lost on exit")
	default:
		if s.Migrate {
			if err := database.Migrate(ctx, cfg.Postgres, log); err != nil {
				cfg.Close(ctx)
				return nil, err
			}
		}
		a.store, directory = database.NewStore(cfg.Postgres), database.NewPartyRepo(cfg.Postgres)
	}

	if cfg.Redis != nil {
		a.broker = realtime.NewRedisBroker(cfg.Redis.Client, log)
	} else {
		a.broker = realtime.NewLocalBroker()
	}

	planOpts := []plans.Option{plans.WithLogger(log.Named("plans")), plans.WithMetrics(a.metrics)}
	if cfg.Mongo != nil {
		a.scoreEvents = audit.NewScoreEvents(cfg.Mongo)
		if err := a.scoreEvents.EnsureIndexes(ctx); err != nil {
			log.Warn("score event index not created", zap.Error(err))
		}
		planOpts = append(planOpts, plans.WithAudit(a.scoreEvents))
		a.records = &importitems.Tracker{MG: cfg.Mongo}
	}
	a.plans = plans.NewService(a.store, scoring.New(policy), planOpts...)
	a.relationships = relationships.NewService(a.store, policy, log.Named("relationships"))
	a.negotiation = negotiation.NewService(a.store, a.plans,
		negotiation.WithPublisher(a.broker),
		negotiation.WithMetrics(a.metrics),
		negotiation.WithLogger(log.Named("negotiation")),
	)

	var mail ports.Mailer = mailer.Discard{Log: log}
	if s.EmailFunctionURL != "" {
		mail = mailer.NewFunctionMailer(s.EmailFunctionURL, s.EmailFunctionKey, log)
	}
	a.reminders = reminders.NewDispatcher(a.store, directory,
		reminders.WithMailer(mail),
		reminders.WithPublisher(a.broker),
		reminders.WithMetrics(a.metrics),
		reminders.WithLogger(log.Named("reminders")),
	)

	compound := opener.NewCompoundOpener(opener.NewHTTPOpener(&http.Client{Timeout: 5 * time.Minute}, log), nil, "")
	compound.Local = &opener.LocalOpener{}
	if cfg.S3 != nil {
		compound.S3 = opener.NewS3Opener(cfg.S3.Client, log)
		compound.DefaultBucket = cfg.S3.Bucket
	}
	stmt := &processors.StatementProcessor{Plans: a.plans, Metrics: a.metrics, Log: log}
	if cfg.Mongo != nil {
		stmt.Journal = importitems.NewJournal(cfg.Mongo, log)
	}
	a.importer = importer.NewService(compound, processors.Register(processors.DefaultRegistry(), stmt), 1000, log)
	if a.records != nil {
		a.importer.Tracker = a.records
	}
	return a, nil
}

func (a *app) Close(ctx context.Context) {
	a.cfg.Close(ctx)
	_ = a.log.Sync()
}

// router assembles the gin engine with the ambient middleware.
func (a *app) router(ctx context.Context) (*gin.Engine, error) {
	s := a.cfg.Settings
	if s.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required to serve the API")
	}
	verifier, err := auth.NewVerifier(s.JWTSecret, s.JWTIssuer)
	if err != nil {
		return nil, err
	}

	if s.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(logger.MiddlewareConfig{Logger: a.log, SkipPaths: []string{"/health", "/metrics"}}))
	r.Use(metrics.GinMiddleware(a.metrics))

	h := &handlers.Handlers{
		Relationships: a.relationships,
		Plans:         a.plans,
		Negotiation:   a.negotiation,
		Reminders:     a.reminders,
		Broker:        a.broker,
		Importer:      a.importer,
		Health:        a.cfg.CheckConnections,
		AttachmentTTL: s.AttachmentTTL,
		Log:           a.log.Named("http"),
	}
	if a.records != nil {
		h.Records = a.records
	}
	if a.scoreEvents != nil {
		h.ScoreEvents = a.scoreEvents
	}
	if a.cfg.S3 != nil {
		h.Objects = a.cfg.S3
	}

	limiter := ratelimit.New(s.RateLimitRPS, s.RateBurst)
	h.Register(r,
		auth.Middleware(verifier, a.log),
		limiter.Middleware(func(c *gin.Context) string {
			id, _ := auth.PartyID(c)
			return id
		}),
		handlers.RequireParties(s.AdminParties),
	)
	go every(ctx, time.Minute, func() { limiter.Sweep() })
	return r, nil
}

// every runs fn each interval until ctx ends.
func every(ctx context.Context, interval time.Duration, fn func()) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}
