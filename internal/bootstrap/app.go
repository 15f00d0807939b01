package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	googleauth "resume-builder/internal/auth"
	"resume-builder/internal/exports"
	"resume-builder/internal/payments"
	"resume-builder/internal/payments/stripeprovider"
	"resume-builder/internal/queue"
	"resume-builder/internal/resumes"
	"resume-builder/internal/services/health"
	"resume-builder/internal/shared/auth"
	"resume-builder/internal/shared/config"
	"resume-builder/internal/shared/server"
	"resume-builder/internal/shared/storage/db"
	mongostore "resume-builder/internal/shared/storage/mongo"
	"resume-builder/internal/shared/storage/object"
	localstore "resume-builder/internal/shared/storage/object/local"
	s3store "resume-builder/internal/shared/storage/object/s3"
	"resume-builder/internal/usage"
	"resume-builder/internal/users"
	"resume-builder/internal/workerproc"
)

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Mongo           *mongostore.Database
	Store           object.ObjectStore
	Queue           queue.Client
	Tokens          *auth.Issuer
	UsersService    *users.Service
	UsageService    *usage.Service
	ResumesService  *resumes.Service
	ExportsService  *exports.Service
	Ledger          *payments.Ledger
	Health          *health.Service
	UsersHandler    *users.Handler
	ResumesHandler  *resumes.Handler
	ExportsHandler  *exports.Handler
	UsageHandler    *usage.Handler
	PaymentsHandler *payments.Handler
	GoogleAuth      *googleauth.GoogleService

	closers []func(context.Context) error
}

// ScoreRunner returns the handler for queued score jobs. Jobs for resumes
// deleted after enqueue are dropped rather than retried.
func (a *App) ScoreRunner() workerproc.Runner {
	return workerproc.Runner{
		Processor: a.ResumesService,
		Gone:      func(err error) bool { return errors.Is(err, resumes.ErrNotFound) },
	}
}

// Close releases connections opened by Build, newest first.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if strings.TrimSpace(cfg.StoreBackend) == "" {
		cfg.StoreBackend = config.StoreMemory
	}
	ctx := context.Background()

	app := &App{Config: cfg}
	if err := app.assemble(ctx); err != nil {
		return nil, err
	}
	return app, nil
}

// assemble opens every dependency in order. Any failure closes what was
// already opened.
func (a *App) assemble(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			_ = a.Close(ctx)
		}
	}()

	if err := a.buildPersistence(ctx); err != nil {
		return err
	}

	store, err := buildStore(ctx, a.Config)
	if err != nil {
		return err
	}
	a.Store = store

	queueClient, closeQueue, err := buildQueue(ctx, a.Config)
	if err != nil {
		return err
	}
	a.Queue = queueClient
	if closeQueue != nil {
		a.closers = append(a.closers, closeQueue)
	}

	if err := a.buildServices(); err != nil {
		return err
	}

	a.Router = server.NewRouter(server.RouterDeps{
		Config:          a.Config,
		Verifier:        a.Tokens,
		Health:          a.Health,
		UserHandler:     a.UsersHandler,
		GoogleAuth:      a.GoogleAuth,
		ResumeHandler:   a.ResumesHandler,
		ExportHandler:   a.ExportsHandler,
		UsageHandler:    a.UsageHandler,
		PaymentsHandler: a.PaymentsHandler,
	})
	return nil
}

func (a *App) buildPersistence(ctx context.Context) error {
	cfg := a.Config
	switch cfg.StoreBackend {
	case config.StorePostgres:
		sqlDB, err := buildDB(ctx, cfg)
		if err != nil {
			return err
		}
		a.DB = sqlDB
		if sqlDB != nil {
			a.closers = append(a.closers, func(context.Context) error { return sqlDB.Close() })
		}
	case config.StoreMongo:
		if strings.TrimSpace(cfg.MongoURI) == "" {
			return fmt.Errorf("MONGODB_URI is required for STORE_BACKEND=mongo")
		}
		database, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			if isDevLike(cfg.Env) {
				log.Printf("bootstrap: mongo connect failed; using in-memory repositories: %v", err)
				return nil
			}
			return err
		}
		if err := database.Migrate(ctx); err != nil {
			_ = database.Close(ctx)
			return fmt.Errorf("mongo indexes: %w", err)
		}
		a.Mongo = database
		a.closers = append(a.closers, database.Close)
	default:
		log.Printf("bootstrap: using in-memory repositories")
	}
	return nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, s3store.Config{
			Region:   cfg.AWSRegion,
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			KMSKeyID: cfg.SSEKMSKeyID,
			Endpoint: cfg.S3Endpoint,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, func(context.Context) error, error) {
	switch cfg.QueueBackend {
	case config.QueueSQS:
		client, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	case config.QueueAMQP:
		client, err := queue.NewAMQPClient(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return nil, nil, err
		}
		return client, func(context.Context) error { return client.Close() }, nil
	default:
		return nil, nil, nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}

func (a *App) buildServices() error {
	cfg := a.Config

	var (
		userRepo    users.Repo
		resumeRepo  resumes.Repo
		paymentRepo payments.Repo
		usageStore  usage.Store
		checkers    []health.Checker
	)
	switch {
	case a.DB != nil:
		userRepo = &users.PGRepo{DB: a.DB}
		resumeRepo = &resumes.PGRepo{DB: a.DB}
		paymentRepo = &payments.PGRepo{DB: a.DB}
		usageStore = usage.NewPGStore(a.DB)
		checkers = append(checkers, db.Pinger{DB: a.DB})
	case a.Mongo != nil:
		userRepo = users.NewMongoRepo(a.Mongo)
		resumeRepo = resumes.NewMongoRepo(a.Mongo)
		paymentRepo = payments.NewMongoRepo(a.Mongo)
		usageStore = usage.NewMongoStore(a.Mongo)
		checkers = append(checkers, a.Mongo)
	default:
		userRepo = users.NewMemoryRepo()
		resumeRepo = resumes.NewMemoryRepo()
		paymentRepo = payments.NewMemoryRepo()
		usageStore = usage.NewMemoryStore()
	}

	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		Env:           cfg.Env,
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	if err != nil {
		return err
	}

	usageSvc := usage.NewService(usageStore)
	userSvc := users.NewService(userRepo, usageSvc)
	resumeSvc := resumes.NewService(resumeRepo, a.Queue, a.Store)
	exportSvc := exports.NewService(resumeSvc, usageSvc, a.Store)

	ledgerCfg := payments.LedgerConfig{
		Catalog:      payments.DefaultCatalog(),
		Repo:         paymentRepo,
		Entitlements: usageSvc,
		SuccessURL:   cfg.FrontendURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:    cfg.FrontendURL + "/pricing",
	}
	if strings.TrimSpace(cfg.StripeSecretKey) != "" {
		checkout, err := stripeprovider.NewCheckout(cfg.StripeSecretKey)
		if err != nil {
			return err
		}
		ledgerCfg.Checkout = checkout
	} else {
		log.Printf("bootstrap: STRIPE_SECRET_KEY empty; checkout disabled")
	}
	ledger := payments.NewLedger(ledgerCfg)

	var verifier payments.EventVerifier
	if strings.TrimSpace(cfg.StripeWebhookKey) != "" {
		v, err := stripeprovider.NewVerifier(cfg.StripeWebhookKey)
		if err != nil {
			return err
		}
		verifier = v
	} else {
		log.Printf("bootstrap: STRIPE_WEBHOOK_SECRET empty; webhook disabled")
	}

	secureCookies := cfg.Env == "production"

	a.Tokens = issuer
	a.UsageService = usageSvc
	a.UsersService = userSvc
	a.ResumesService = resumeSvc
	a.ExportsService = exportSvc
	a.Ledger = ledger
	a.Health = health.NewService(checkers...)
	a.UsersHandler = users.NewHandler(userSvc, issuer, secureCookies)
	a.ResumesHandler = resumes.NewHandler(resumeSvc)
	a.ExportsHandler = exports.NewHandler(exportSvc)
	a.UsageHandler = usage.NewHandler(usageSvc)
	a.PaymentsHandler = payments.NewHandler(ledger, verifier)
	a.GoogleAuth = googleauth.NewGoogleService(
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL,
		cfg.UIRedirectURL,
		userSvc,
		issuer,
		secureCookies,
	)

	return nil
}
