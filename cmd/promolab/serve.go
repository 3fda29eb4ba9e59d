package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/davicafu/promolab/internal/config"
	promoApp "github.com/davicafu/promolab/internal/promotion/application"
	promoDomain "github.com/davicafu/promolab/internal/promotion/domain"
	promoEvents "github.com/davicafu/promolab/internal/promotion/infra/inbound/events"
	promoHttp "github.com/davicafu/promolab/internal/promotion/infra/inbound/http"
	"github.com/davicafu/promolab/internal/promotion/infra/outbound/analytics/clickhouse"
	"github.com/davicafu/promolab/internal/promotion/infra/outbound/credit"
	"github.com/davicafu/promolab/internal/promotion/infra/outbound/db/sqlrepo"
	"github.com/davicafu/promolab/internal/promotion/infra/outbound/seed"
	sharedEvents "github.com/davicafu/promolab/internal/shared/domain/events"
	infraEvents "github.com/davicafu/promolab/internal/shared/infra/events"
	sharedBus "github.com/davicafu/promolab/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/promolab/internal/shared/infra/platform/cache"
	"github.com/davicafu/promolab/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/promolab/internal/shared/infra/platform/observability"
	"github.com/davicafu/promolab/internal/shared/infra/relayer"
	"github.com/davicafu/promolab/pkg/logger"
)

const (
	serviceName       = "promolab"
	redeliveryDelay   = 2 * time.Second
	busBufferSize     = 100
	analyticsInterval = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// ---------------- Serve ----------------
func runServe(parent context.Context, cfg *config.Config) error {
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTelEndpoint, serviceName)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	// ---------------- DB ----------------
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// ---------------- Cache ----------------
	cache, closeCache := buildCache(ctx, cfg, log)
	defer closeCache()

	// --------------- Servicio --------------
	outbox := sqldb.NewOutboxRepo(db)
	catalog := promoApp.NewPromotionCatalog(sqlrepo.NewPromotionRepo(db), cache, cfg.CatalogCacheTTL, log.Named("catalog"))
	workflow := promoApp.NewWorkflowService(
		promoApp.NewIdempotencyLedger(sqlrepo.NewProcessedEventRepo(db)),
		catalog,
		sqlrepo.NewApplicationRepo(db),
		outbox,
		db,
		promoApp.NewEligibilityEvaluator(log.Named("evaluator")),
		promoApp.NewPercentageCalculator(log.Named("calculator")),
		credit.NewHTTPCreditClient(cfg.CreditServiceURL, cfg.CreditTimeout, log),
		log.Named("workflow"),
	)
	consumer := promoEvents.NewTransactionConsumer(workflow, log)

	// --------------- Analítica --------------
	var projector *promoEvents.AnalyticsProjector
	if cfg.ClickHouseAddr != "" {
		chDB, err := clickhouse.OpenDB(ctx, cfg.ClickHouseAddr, cfg.ClickHouseDB)
		if err != nil {
			log.Warn("⚠️ ClickHouse no disponible, analítica desactivada", zap.Error(err))
		} else {
			defer chDB.Close()
			analytics := clickhouse.NewApplicationAnalyticsRepo(chDB)
			if err := analytics.InitSchema(ctx); err != nil {
				return fmt.Errorf("init clickhouse schema: %w", err)
			}
			projector = promoEvents.NewAnalyticsProjector(analytics, cfg.OutboxLimit, analyticsInterval, log)
			projector.Start(ctx)
		}
	}

	// ---------------- Events ---------------
	var publisher sharedBus.EventBus
	if cfg.UseKafka {
		log.Info("🚀 Usando Kafka como bus de eventos", zap.Strings("brokers", cfg.KafkaBrokers))

		// Sin topic fijo: cada mensaje lleva el suyo.
		writer := &kafka.Writer{
			Addr:         kafka.TCP(cfg.KafkaBrokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		}
		defer writer.Close()
		publisher = infraEvents.NewKafkaPublisher(writer, log.Named("kafka-publisher"))

		txReader := newReader(cfg, cfg.KafkaTransactionsTopic, cfg.KafkaGroupID)
		defer txReader.Close()
		infraEvents.NewConsumerAdapter(txReader, consumer, redeliveryDelay, log.Named("kafka-consumer")).Start(ctx)

		if projector != nil {
			analyticsReader := newReader(cfg, promoDomain.PromotionTopic, cfg.KafkaGroupID+"-analytics")
			defer analyticsReader.Close()
			infraEvents.NewConsumerAdapter(analyticsReader, projector, redeliveryDelay, log.Named("kafka-analytics")).Start(ctx)
		}
	} else {
		log.Info("⚡️ Usando bus de eventos en memoria (canales de Go)")

		bus := infraEvents.NewInMemoryEventBus()
		publisher = bus
		infraEvents.BackgroundConsumerChan(ctx, bus.Subscribe(cfg.KafkaTransactionsTopic, busBufferSize), consumer, log)
		if projector != nil {
			infraEvents.BackgroundConsumerChan(ctx, bus.Subscribe(promoDomain.PromotionTopic, busBufferSize), projector, log)
		}
	}

	// ------------ Outbox Worker ------------
	// Un único relayer por base de datos.
	registry := sharedEvents.Merge(promoDomain.NewEventRegistry())
	worker := relayer.NewOutboxWorker(outbox, publisher, registry, cfg.OutboxPeriod, cfg.OutboxLimit, log.Named("relayer"))
	go worker.Start(ctx)

	// ---------------- HTTP ----------------
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	promoHttp.RegisterPromotionRoutes(router, promoHttp.NewPromotionHandler(catalog, workflow, outbox, consumer, log))

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(router, serviceName),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("🚀 Server running", zap.String("url", "http://localhost:"+cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("🛑 Señal recibida, apagando...")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ---------------- Migrate ----------------
func runMigrate(ctx context.Context, cfg *config.Config) error {
	log := logger.Logger()
	defer log.Sync()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("✅ Esquema SQL listo", zap.String("driver", cfg.DBDriver))

	if cfg.ClickHouseAddr == "" {
		return nil
	}
	chDB, err := clickhouse.OpenDB(ctx, cfg.ClickHouseAddr, cfg.ClickHouseDB)
	if err != nil {
		return err
	}
	defer chDB.Close()
	if err := clickhouse.NewApplicationAnalyticsRepo(chDB).InitSchema(ctx); err != nil {
		return fmt.Errorf("init clickhouse schema: %w", err)
	}
	log.Info("✅ Esquema ClickHouse listo")
	return nil
}

// ---------------- Seed ----------------
func runSeed(ctx context.Context, cfg *config.Config, path string) error {
	log := logger.Logger()
	defer log.Sync()

	promos, err := seed.LoadFile(path)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// El catálogo invalida la caché compartida si el servicio usa Redis.
	cache, closeCache := buildCache(ctx, cfg, log)
	defer closeCache()
	catalog := promoApp.NewPromotionCatalog(sqlrepo.NewPromotionRepo(db), cache, cfg.CatalogCacheTTL, log)

	if err := seed.Apply(ctx, catalog, promos, log); err != nil {
		return err
	}
	log.Info("✅ Promociones cargadas", zap.Int("count", len(promos)), zap.String("file", path))
	return nil
}

// ---------------- Helpers ----------------
func openDB(ctx context.Context, cfg *config.Config) (*sqldb.DB, error) {
	db, err := sqldb.Open(ctx, sqldb.Dialect(cfg.DBDriver), cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := sqlrepo.InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func buildCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (sharedCache.Cache, func()) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("⚠️ Redis no disponible, cache en memoria", zap.Error(err))
		rdb.Close()
		mem := sharedCache.NewInMemoryCache(cfg.CatalogCacheTTL, 3*cfg.CatalogCacheTTL)
		return mem, mem.Stop
	}
	log.Info("✅ Redis conectado, cache habilitado")
	return sharedCache.NewRedisCache(rdb, serviceName+":", cfg.CatalogCacheTTL), func() { rdb.Close() }
}

func newReader(cfg *config.Config, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
}
