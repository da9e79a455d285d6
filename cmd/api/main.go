package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/s1d40/empathy-hub-backend/config"
	"github.com/s1d40/empathy-hub-backend/internal/events"
	"github.com/s1d40/empathy-hub-backend/internal/handler"
	hubredis "github.com/s1d40/empathy-hub-backend/internal/redis"
	"github.com/s1d40/empathy-hub-backend/internal/repository"
	"github.com/s1d40/empathy-hub-backend/internal/repository/memory"
	"github.com/s1d40/empathy-hub-backend/internal/server"
	"github.com/s1d40/empathy-hub-backend/internal/services"
	"github.com/s1d40/empathy-hub-backend/internal/websocket"
	"github.com/s1d40/empathy-hub-backend/pkg/database"
	"github.com/s1d40/empathy-hub-backend/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const unsubscribeTimeout = 5 * time.Second

type stores struct {
	users         repository.UserRepository
	rooms         repository.ChatRoomRepository
	requests      repository.ChatRequestRepository
	notifications repository.NotificationRepository
}

func main() {
	cfg := config.LoadConfig()
	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	if err := run(cfg, l); err != nil {
		l.Errorf("api stopped: %v", err)
		l.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, l *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := make(map[string]server.HealthCheck)

	var rdb *goredis.Client
	var broker events.Broker
	switch cfg.BrokerDriver {
	case config.BrokerRedis:
		rdb = hubredis.NewClient(hubredis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := hubredis.Ping(ctx, rdb); err != nil {
			return err
		}
		broker = hubredis.NewStreamBroker(rdb, hubredis.StreamConfig{
			Prefix:     cfg.StreamPrefix,
			MaxLen:     int64(cfg.StreamMaxLen),
			Block:      time.Duration(cfg.BrokerBlockMs) * time.Millisecond,
			BackoffMax: time.Duration(cfg.BrokerBackoffMaxSec) * time.Second,
		}, l)
		checks["redis"] = func(ctx context.Context) error { return hubredis.Ping(ctx, rdb) }
	case config.BrokerMemory:
		broker = events.NewMemoryBroker()
	default:
		return fmt.Errorf("unknown broker driver %q", cfg.BrokerDriver)
	}

	var st stores
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		db, err := database.Connect(cfg)
		if err != nil {
			return err
		}
		defer database.Close(db)
		if err := repository.InitSchema(db); err != nil {
			return err
		}
		st = stores{
			users:         repository.NewUserRepository(db),
			rooms:         repository.NewChatRoomRepository(db),
			requests:      repository.NewChatRequestRepository(db),
			notifications: repository.NewNotificationRepository(db),
		}
		checks["database"] = func(ctx context.Context) error { return database.HealthCheck(ctx, db) }
	case config.StorageMemory:
		l.Infof("using in-memory storage, data is lost on restart")
		rooms := memory.NewChatRoomRepository()
		st = stores{
			users:         memory.NewUserRepository(),
			rooms:         rooms,
			requests:      memory.NewChatRequestRepository(rooms),
			notifications: memory.NewNotificationRepository(),
		}
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	var limiter services.MessageLimiter
	if rdb != nil {
		if cfg.UserCacheTTLSec > 0 {
			st.users = hubredis.NewCachedUserRepository(st.users, rdb, time.Duration(cfg.UserCacheTTLSec)*time.Second, l)
		}
		if cfg.MessageRateLimit > 0 {
			limiter = hubredis.NewRateLimiter(rdb, hubredis.RateLimitConfig{
				MessageLimit:  cfg.MessageRateLimit,
				MessageWindow: time.Duration(cfg.MessageRateWindowSec) * time.Second,
			})
		}
	}

	filter := services.NewDeliveryFilter(st.users)
	publisher := services.NewEventPublisher(broker, l)
	notifications := services.NewNotificationService(st.notifications, filter, publisher, l)
	chat := services.NewChatService(st.users, st.rooms, st.requests, filter, notifications, publisher, l)
	auth := services.NewAuthService(st.users, cfg)

	registries := websocket.NewRegistries()
	hub := websocket.NewHub(registries, filter, l)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Chat:          handler.NewChatHandler(chat),
		Notifications: handler.NewNotificationHandler(notifications),
		Sockets:       websocket.NewHandler(auth, chat, limiter, hub, l),
	}, auth, limiter, checks)

	l.Infof("instance %s: storage=%s broker=%s", cfg.InstanceID, cfg.StorageDriver, cfg.BrokerDriver)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return hub.Consume(gctx, broker, cfg.InstanceID)
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		registries.CloseAll("server shutting down")
		return nil
	})
	err := g.Wait()

	unsubCtx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
	defer cancel()
	if uerr := hub.Unsubscribe(unsubCtx, broker, cfg.InstanceID); uerr != nil {
		l.Warnf("unsubscribe: %v", uerr)
	}
	return err
}
