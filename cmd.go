package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cppla/webdevhub/config"
	"github.com/cppla/webdevhub/controllers"
	"github.com/cppla/webdevhub/routes"
	"github.com/cppla/webdevhub/services"
	"github.com/cppla/webdevhub/storage"
	"github.com/cppla/webdevhub/storage/gormstore"
	"github.com/cppla/webdevhub/storage/memory"
	"github.com/cppla/webdevhub/utils"
)

var (
	configPath    string
	storageDriver string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "webdevhub",
		Short: "Blog, forum and contact API for a developer community",
		// serve is the default action.
		RunE:          func(cmd *cobra.Command, _ []string) error { return runServe(cmd.Context()) },
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json or config.yaml (default: search config/)")
	root.PersistentFlags().StringVar(&storageDriver, "storage", "", "Storage backend override: gorm or memory")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP API with graceful shutdown",
			RunE:  func(cmd *cobra.Command, _ []string) error { return runServe(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update database tables",
			RunE:  func(cmd *cobra.Command, _ []string) error { return runMigrate(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Insert sample users, posts and threads",
			RunE:  func(cmd *cobra.Command, _ []string) error { return runSeed(cmd.Context()) },
		},
	)
	return root
}

// app holds everything built at boot.
type app struct {
	cfg        config.AppConfig
	log        *zap.Logger
	store      storage.Store
	rdb        *redis.Client
	dispatcher *services.Dispatcher
	identity   *services.IdentityService
	oauth      *services.OAuthService
	blog       *services.ContentService
	forum      *services.ContentService
	contact    *services.ContactService
	captcha    *utils.Captcha
}

func loadConfig() (config.AppConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if storageDriver != "" {
		cfg.StorageDriver = storageDriver
	}
	return cfg, nil
}

func openStore(cfg config.AppConfig) (storage.Store, error) {
	switch cfg.StorageDriver {
	case "memory":
		return memory.New(), nil
	case "gorm", "":
		db, err := config.OpenDatabase(cfg)
		if err != nil {
			return nil, err
		}
		return gormstore.New(db), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// bootstrap builds the store, the services and the notification pipeline.
// events is false for one-shot commands that must not send mail.
func bootstrap(ctx context.Context, events bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := utils.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, store: store}
	a.rdb = utils.NewRedis(cfg, log)

	notifier := services.NewMailNotifier(utils.NewSMTPMailer(cfg), cfg.SiteName, cfg.FrontendURL)
	var sink services.EventSink
	if events {
		a.dispatcher = services.NewDispatcher(notifier, cfg.NotifyWorkers, cfg.NotifyQueueSize, cfg.NotifyTimeout(), log)
		sink = a.dispatcher
	}

	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL())
	a.identity = services.NewIdentityService(store, store, utils.NewBcryptHasher(0), tokens, utils.NewRevocationList(a.rdb), sink, log)
	a.oauth = services.NewOAuthService(cfg, store, a.identity, utils.NewStateStore(a.rdb), log)
	a.blog = services.NewContentService(services.BlogKind, store, store, sink, cfg.FrontendURL, log)
	a.forum = services.NewContentService(services.ForumKind, store, store, sink, cfg.FrontendURL, log)

	var verifier services.CaptchaVerifier
	if cfg.ContactCaptchaEnabled {
		a.captcha = utils.NewCaptcha(a.rdb)
		verifier = a.captcha
	}
	adminEmail := cfg.AdminEmail
	if adminEmail == "" {
		adminEmail = cfg.SMTPFrom
	}
	a.contact = services.NewContactService(store, sink, notifier, verifier, adminEmail, log)
	return a, nil
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	_ = a.log.Sync()
}

func runServe(ctx context.Context) error {
	a, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	accessLog, err := utils.NewRollingFileLogger(a.cfg.GinPath, a.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = accessLog.Sync() }()

	var issuer controllers.CaptchaIssuer
	if a.captcha != nil {
		issuer = a.captcha
	}
	r := routes.SetupRouter(routes.Deps{
		Config:    a.cfg,
		Log:       a.log,
		AccessLog: accessLog,
		Identity:  a.identity,
		OAuth:     a.oauth,
		Blog:      a.blog,
		Forum:     a.forum,
		Contact:   a.contact,
		Captcha:   issuer,
	})

	a.log.Info("starting server (graceful)", zap.String("port", a.cfg.AppPort), zap.String("storage", a.cfg.StorageDriver))
	serveErr := utils.GraceServer(":"+a.cfg.AppPort, r, a.log)

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.dispatcher.Shutdown(drainCtx); err != nil {
		a.log.Warn("notification queue not drained", zap.Error(err))
	}
	if serveErr != nil {
		a.log.Error("server stopped with error", zap.Error(serveErr))
		return serveErr
	}
	return nil
}

func runMigrate(ctx context.Context) error {
	a, err := bootstrap(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()
	a.log.Info("database migrated", zap.String("storage", a.cfg.StorageDriver))
	return nil
}

func runSeed(ctx context.Context) error {
	a, err := bootstrap(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()
	return seed(ctx, a)
}
