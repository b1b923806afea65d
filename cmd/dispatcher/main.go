// Dispatcher 主程序
// 功能：接收商户订单并派给可接单的交易员，提供交易员界面与运营后台的 JSON API
// 架构：DDD 分层 + gorm + Kafka outbox + gRPC 健康检查
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/application"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/infrastructure/messaging"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/infrastructure/notifier"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/infrastructure/persistence"
	httphandler "github.com/wyfcoding/orderdispatch/internal/dispatch/interfaces/http"
	"github.com/wyfcoding/orderdispatch/pkg/cache"
	"github.com/wyfcoding/orderdispatch/pkg/config"
	"github.com/wyfcoding/orderdispatch/pkg/db"
	"github.com/wyfcoding/orderdispatch/pkg/logger"
	"github.com/wyfcoding/orderdispatch/pkg/metrics"
	"github.com/wyfcoding/orderdispatch/pkg/middleware"
	"github.com/wyfcoding/orderdispatch/pkg/ratelimit"
	pkgconfig "github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "configs/dispatcher/config.toml", "path to config file")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(logger.Config{
		Service:    cfg.ServiceName,
		Module:     "dispatcher",
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "Starting dispatcher",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
		"busy_policy", cfg.Dispatch.BusyPolicy,
	)

	if err := run(ctx, cfg); err != nil {
		logger.Error(ctx, "Dispatcher exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info(context.Background(), "Dispatcher stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	// 3. 数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		if err := persistence.AutoMigrate(database.DB); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	// 4. 指标，metrics.enabled 只控制 /metrics 路由
	m := metrics.New(cfg.ServiceName)

	// 5. 限流：有 Redis 时多实例共享配额，否则单机限流
	var limiter ratelimit.RateLimiter = ratelimit.NewLocalRateLimiter()
	checks := map[string]func(context.Context) error{"database": database.Ping}
	if cfg.Redis.Enabled {
		redisCache, err := cache.New(cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		defer redisCache.Close()
		limiter = ratelimit.NewRedisRateLimiter(redisCache.Client())
		checks["redis"] = redisCache.Ping
	}

	// 6. Kafka
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		// 不设默认主题，outbox 与通知按消息指定主题
		producer = kafka.NewProducer(&pkgconfig.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			WriteTimeout: cfg.Kafka.WriteTimeout,
			ReadTimeout:  cfg.Kafka.ReadTimeout,
		}, logger.Logging(), m.Core())
		defer producer.Close()
	}

	// 7. 通知
	sender, err := newSender(cfg, producer)
	if err != nil {
		return err
	}
	pool := notifier.NewPool(sender, notifier.PoolConfig{
		Workers:   cfg.Notifier.Workers,
		QueueSize: cfg.Notifier.QueueSize,
		Timeout:   cfg.Notifier.Timeout,
	}, m)

	// 8. 领域事件：开启时随业务事务写入 outbox 表，关闭时丢弃
	outboxMgr := outbox.NewManager(database.DB, logger.Get())
	var events domain.EventPublisher = messaging.NopPublisher{}
	if cfg.Outbox.Enabled {
		events = messaging.NewOutboxPublisher(outbox.NewPublisher(outboxMgr), cfg.Outbox.TopicPrefix)
	}

	// 9. 应用服务
	svc := application.NewDispatchService(application.Deps{
		Tx:         database,
		Traders:    persistence.NewTraderRepository(database.DB),
		Orders:     persistence.NewOrderRepository(database.DB),
		Payouts:    persistence.NewPayoutRepository(database.DB),
		Tickets:    persistence.NewTicketRepository(database.DB),
		Events:     events,
		Notifier:   pool,
		Metrics:    m,
		BusyPolicy: cfg.Dispatch.BusyPolicy,
		Timeout:    cfg.Dispatch.Timeout,
	})

	httpServer := createHTTPServer(cfg, svc, checks, limiter, m)
	var grpcServer *grpc.Server
	if cfg.GRPC.Enabled {
		grpcServer = createGRPCServer()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(gctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if grpcServer != nil {
		g.Go(func() error {
			addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen grpc: %w", err)
			}
			logger.Info(gctx, "Starting gRPC server", "addr", addr)
			return grpcServer.Serve(lis)
		})
	}

	if cfg.Outbox.Enabled && producer != nil {
		proc := outbox.NewProcessor(outboxMgr, messaging.NewKafkaPusher(producer, m), cfg.Outbox.BatchSize, cfg.Outbox.Interval)
		g.Go(func() error {
			proc.Start()
			<-gctx.Done()
			proc.Stop()
			return nil
		})
	}

	// 优雅关停
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "Shutting down dispatcher")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, "HTTP server shutdown error", "error", err)
		}
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		// HTTP 停止后不再有新通知入队
		if err := pool.Close(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "notification queue not drained", "error", err)
		}
		return nil
	})

	return g.Wait()
}

func newSender(cfg *config.Config, producer *kafka.Producer) (domain.Notifier, error) {
	switch cfg.Notifier.Type {
	case "webhook":
		return notifier.NewWebhookNotifier(notifier.WebhookConfig{
			URL:        cfg.Notifier.WebhookURL,
			Timeout:    cfg.Notifier.Timeout,
			MaxRetries: cfg.Notifier.MaxRetries,
		}), nil
	case "kafka":
		if producer == nil {
			return nil, errors.New("kafka notifier requires kafka.brokers")
		}
		return notifier.NewKafkaNotifier(kafka.NewNotificationSender(producer, cfg.Notifier.Topic)), nil
	default:
		return notifier.NewLogNotifier(), nil
	}
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(cfg *config.Config, svc *application.DispatchService, checks map[string]func(context.Context) error, limiter ratelimit.RateLimiter, m *metrics.Metrics) *http.Server {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinMetricsMiddleware(m))

	handler := httphandler.NewHandler(svc)
	handler.RegisterRoutes(router, middleware.RateLimitMiddleware(limiter, cfg.RateLimit, middleware.ClientIPKey("merchant")))

	router.GET("/health", healthHandler(cfg.ServiceName, checks))

	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}

// healthHandler 依次检查依赖，任一失败返回 503
func healthHandler(service string, checks map[string]func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		deps := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				status, code = "unhealthy", http.StatusServiceUnavailable
				deps[name] = err.Error()
				continue
			}
			deps[name] = "ok"
		}
		c.JSON(code, gin.H{
			"status":       status,
			"service":      service,
			"dependencies": deps,
			"timestamp":    time.Now().Unix(),
		})
	}
}

// createGRPCServer 仅提供健康检查与反射
func createGRPCServer() *grpc.Server {
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			middleware.GRPCLoggingInterceptor(),
			middleware.GRPCRecoveryInterceptor(),
		),
	)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)
	return server
}
