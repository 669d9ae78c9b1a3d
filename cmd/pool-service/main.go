package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/office-betting-pool/internal/leaderboard"
	"github.com/radieske/office-betting-pool/internal/ledger"
	"github.com/radieske/office-betting-pool/internal/pool-service/auth"
	phttp "github.com/radieske/office-betting-pool/internal/pool-service/http"
	kpub "github.com/radieske/office-betting-pool/internal/pool-service/producer"
	"github.com/radieske/office-betting-pool/internal/pool-service/repo"
	"github.com/radieske/office-betting-pool/internal/pool-service/ws"
	"github.com/radieske/office-betting-pool/internal/shared/cache"
	"github.com/radieske/office-betting-pool/internal/shared/config"
	"github.com/radieske/office-betting-pool/internal/shared/db"
	"github.com/radieske/office-betting-pool/internal/shared/kafka"
	"github.com/radieske/office-betting-pool/internal/shared/logger"
	"github.com/radieske/office-betting-pool/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New("pool-service", cfg.Env)
	defer log.Sync()

	var (
		led *ledger.Ledger
		pg  *sql.DB
		rdb *redis.Client
		lb  *leaderboard.Cache
	)

	// Stores: Postgres por padrão; memory roda tudo em processo, sem infra.
	if cfg.StoreBackend == "memory" {
		mem := repo.NewMemory()
		led = ledger.New(mem, mem, mem, cfg.AdminUser)
		log.Info("using in-memory store")
	} else {
		var err error
		pg, err = db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("pg", zap.Error(err))
		}
		defer pg.Close()

		repository := repo.NewPostgres(pg)
		led = ledger.New(repository, repository, repository, cfg.AdminUser)
	}

	// Redis (ranking) e Kafka (eventos) só fora do modo memory.
	var publ phttp.Publisher = kpub.Nop{}
	if cfg.StoreBackend != "memory" {
		var err error
		rdb, err = cache.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		lb = leaderboard.New(rdb)

		kp := &kpub.KafkaPublisher{
			BetCreated:     kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetCreated),
			BetPlaced:      kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced),
			BetResolved:    kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetResolved),
			BalanceChanged: kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBalanceChanged),
		}
		defer kp.BetCreated.Close()
		defer kp.BetPlaced.Close()
		defer kp.BetResolved.Close()
		defer kp.BalanceChanged.Close()
		publ = kp
	}

	// Toda mutação de saldo persistida vira um evento balance_changed,
	// que o leaderboard-worker aplica no ranking.
	led.OnBalanceChange = func(e ledger.Entry) {
		_ = publ.PublishBalanceChanged(context.Background(), events.BalanceChanged{
			Username: e.Username,
			Delta:    e.Amount,
			Balance:  e.Balance,
			Reason:   e.Description,
			Ts:       e.Timestamp,
		})
	}

	// A conta admin precisa existir antes de qualquer operação.
	if _, err := led.EnsureAdmin(context.Background()); err != nil {
		log.Fatal("ensure admin", zap.Error(err))
	}

	sess := auth.NewSessions()
	api := phttp.NewServer(log, led, sess, lb, publ)

	// Feed ao vivo: mutações de aposta vão para o Pub/Sub do Redis e cada
	// instância repassa aos seus clientes WebSocket em /ws.
	if rdb != nil {
		hub := ws.NewHub(func(r *http.Request) bool { return true })
		ws.StartRedisSubscriber(context.Background(), rdb, hub)
		api = api.WithFeed(hub, ws.NewRedisBroadcaster(rdb))
	}

	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if pg != nil {
			if err := pg.PingContext(r.Context()); err != nil {
				http.Error(w, "pg", http.StatusServiceUnavailable)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() {
		addr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("metrics/health", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, metricsMux)
	}()

	log.Info("pool-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
