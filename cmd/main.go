package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"kodomo/inventoryhub/internal/config"
	"kodomo/inventoryhub/internal/handler"
	"kodomo/inventoryhub/internal/imaging"
	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/repository"
	"kodomo/inventoryhub/internal/service"
	"kodomo/inventoryhub/pkg/crypto"
	jwtpkg "kodomo/inventoryhub/pkg/jwt"
)

func main() {
	configPath := flag.StringP("config", "c", "config.yaml", "path to the configuration file")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Initialize logger
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Open the group store
	var store repository.Store
	switch cfg.Database.Driver {
	case "mongo":
		client, db, err := config.NewMongoDatabase(ctx, cfg.Database.Mongo)
		if err != nil {
			logger.Fatal("failed to connect to mongo", zap.Error(err))
		}
		defer client.Disconnect(context.Background())
		if cfg.Database.AutoMigrate {
			if err := repository.EnsureMongoIndexes(ctx, db); err != nil {
				logger.Fatal("failed to create mongo indexes", zap.Error(err))
			}
		}
		store = repository.NewMongoStore(db, logger)
	default:
		db, err := config.NewGormDB(cfg.Database)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
		}
		if cfg.Database.AutoMigrate {
			if err := model.AutoMigrate(db); err != nil {
				logger.Fatal("failed to auto-migrate", zap.Error(err))
			}
			logger.Info("database migration completed")
		}
		store = repository.NewGormStore(db, cfg.Cloud.LockGroupRows)
	}
	logger.Info("group store ready", zap.String("driver", cfg.Database.Driver))

	// 4. Redis is shared by the state store and the notifier and only dialed when one uses it
	var redisClient *redis.Client
	getRedis := func() *redis.Client {
		if redisClient == nil {
			redisClient, err = config.NewRedisClient(cfg.Database.Redis)
			if err != nil {
				logger.Fatal("failed to connect to redis", zap.Error(err))
			}
		}
		return redisClient
	}
	defer func() {
		if redisClient != nil {
			redisClient.Close()
		}
	}()

	// 5. Initialize state store (refresh tokens)
	stateStore, err := newStateStore(ctx, cfg.State, cfg.Database.Redis.Prefix, getRedis)
	if err != nil {
		logger.Fatal("failed to init state store", zap.Error(err))
	}
	logger.Info("state store ready", zap.String("backend", cfg.State.Backend))

	// 6. Initialize notifier
	var notifier repository.Notifier
	switch cfg.Notify.Backend {
	case "redis":
		notifier = repository.NewRedisNotifier(getRedis(), cfg.Database.Redis.Prefix)
	case "memory", "":
		notifier = repository.NewMemoryNotifier()
	default:
		logger.Fatal("unknown notify backend", zap.String("backend", cfg.Notify.Backend))
	}

	// 7. Initialize image storage
	var (
		images       repository.ImageStore
		imageHandler *handler.ImageHandler
	)
	switch cfg.Images.Backend {
	case "s3":
		awsCfg, err := config.NewAWSConfig(ctx, cfg.Images.S3.Region)
		if err != nil {
			logger.Fatal("failed to init aws", zap.Error(err))
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Images.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Images.S3.Endpoint)
			}
			o.UsePathStyle = cfg.Images.S3.UsePathStyle
		})
		images = repository.NewS3ImageStore(client, repository.S3ImageStoreConfig{
			Bucket:    cfg.Images.S3.Bucket,
			Prefix:    cfg.Images.S3.Prefix,
			PublicURL: cfg.Images.S3.PublicURL,
		})
		logger.Info("using S3 image store", zap.String("bucket", cfg.Images.S3.Bucket))
	default:
		local, err := repository.NewLocalImageStore(cfg.Images.Dir, cfg.Images.BaseURL)
		if err != nil {
			logger.Fatal("failed to init image store", zap.Error(err))
		}
		images = local
		imageHandler = handler.NewImageHandler(local, cfg.Images.BaseURL)
		logger.Info("using local image store", zap.String("dir", local.Dir()))
	}
	imageOpt := imaging.Options{MaxDimension: cfg.Images.MaxDimension, Quality: cfg.Images.JPEGQuality}

	// 8. Initialize mailer
	mailer, err := newMailer(ctx, cfg.Mail)
	if err != nil {
		logger.Fatal("failed to init mailer", zap.Error(err))
	}
	if mailer == nil {
		logger.Warn("mail backend disabled, invite e-mails will be refused")
	}

	// 9. Initialize JWT manager and key sealer
	jwtManager := jwtpkg.NewManager(
		cfg.JWT.SigningKey,
		cfg.JWT.Issuer,
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
	)
	sealer := crypto.NewSealer(cfg.Vision.SealKey)

	// 10. Initialize services
	authService := service.NewAuthService(store, stateStore, notifier, jwtManager, sealer, logger)
	groupService := service.NewGroupService(store, notifier, images, cfg.Cloud.TransactionalWrites, logger)
	itemService := service.NewItemService(store, notifier, images, imageOpt, logger)
	inviteService := service.NewInviteService(store, notifier, cfg.Cloud.TransactionalWrites, cfg.Invite, mailer, logger)
	visionService := service.NewVisionService(store, sealer, &http.Client{Timeout: cfg.Vision.Timeout}, cfg.Vision, imageOpt, logger)
	syncService := service.NewSyncService(store, notifier, logger)
	oauth2Service := service.NewOAuth2Service(cfg.OAuth2, store, stateStore, jwtManager, &http.Client{Timeout: 15 * time.Second}, logger)
	linkedAccountService := service.NewLinkedAccountService(store, logger)

	// 11. Initialize handlers
	maxUpload := cfg.Server.MaxUploadBytes
	handlers := handler.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		OAuth2:   handler.NewOAuth2Handler(oauth2Service),
		Identity: handler.NewIdentityHandler(linkedAccountService),
		Group:    handler.NewGroupHandler(groupService),
		Item:     handler.NewItemHandler(itemService, maxUpload),
		Invite:   handler.NewInviteHandler(inviteService),
		Vision:   handler.NewVisionHandler(visionService, maxUpload),
		Sync:     handler.NewSyncHandler(syncService),
		Images:   imageHandler,
	}

	// 12. Local variant
	if cfg.Local.Enabled {
		localStore, err := newStateStore(ctx, cfg.Local.Store, cfg.Database.Redis.Prefix+"local:", getRedis)
		if err != nil {
			logger.Fatal("failed to init local state store", zap.Error(err))
		}
		localImages, err := repository.NewLocalImageStore(cfg.Local.ImageDir, localImagesURL)
		if err != nil {
			logger.Fatal("failed to init local image store", zap.Error(err))
		}
		inv := service.NewLocalInventory(repository.NewSnapshotRepository(localStore, logger), localImages, logger)
		if err := inv.Load(ctx); err != nil {
			logger.Fatal("failed to load local inventory", zap.Error(err))
		}
		handlers.Local = handler.NewLocalHandler(inv, maxUpload)
		handlers.LocalImages = handler.NewImageHandler(localImages, localImagesURL)
		logger.Info("local inventory enabled", zap.String("store", cfg.Local.Store.Backend))
	}

	// 13. Setup router
	router := handler.SetupRouter(cfg, logger, jwtManager, handlers)

	// 14. Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	// 15. Start server with graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server exited gracefully")
}

const localImagesURL = "/local-images"

func newStateStore(ctx context.Context, sc config.StateConfig, redisPrefix string, getRedis func() *redis.Client) (repository.StateStore, error) {
	switch sc.Backend {
	case "redis":
		return repository.NewRedisStateStore(getRedis(), redisPrefix), nil
	case "memory", "":
		return repository.NewMemoryStateStore(), nil
	case "file":
		return repository.NewFileStateStore(sc.Dir)
	case "sqlite":
		db, err := config.NewSQLiteDB(sc.Path)
		if err != nil {
			return nil, err
		}
		return repository.NewSQLiteStateStore(ctx, db)
	default:
		return nil, fmt.Errorf("unknown state backend %q", sc.Backend)
	}
}

// newMailer returns nil when mail is disabled.
func newMailer(ctx context.Context, mc config.MailConfig) (service.MailSender, error) {
	switch mc.Backend {
	case "none", "":
		return nil, nil
	case "smtp":
		return service.NewSMTPSender(mc)
	case "ses":
		awsCfg, err := config.NewAWSConfig(ctx, mc.SES.Region)
		if err != nil {
			return nil, err
		}
		return service.NewSESSender(sesv2.NewFromConfig(awsCfg), mc)
	case "mailgun":
		return service.NewMailgunSender(mc)
	default:
		return nil, fmt.Errorf("unknown mail backend %q", mc.Backend)
	}
}
