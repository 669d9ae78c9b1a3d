package main

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/office-betting-pool/internal/leaderboard"
	"github.com/radieske/office-betting-pool/internal/shared/cache"
	"github.com/radieske/office-betting-pool/internal/shared/config"
	"github.com/radieske/office-betting-pool/internal/shared/logger"
	"github.com/radieske/office-betting-pool/internal/shared/metrics"
	ev "github.com/radieske/office-betting-pool/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("leaderboard-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Redis: destino do ranking
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	lb := leaderboard.New(rdb)

	// Kafka consumer: eventos balance_changed emitidos pelo pool-service
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  strings.Split(cfg.KafkaBrokers, ","),
		GroupID:  "leaderboard",
		Topic:    cfg.TopicBalanceChanged,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	// métricas
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "pool_lb_messages_consumed_total", Help: "mensagens consumidas"})
	applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "pool_lb_cache_sets_total", Help: "atualizações aplicadas no ranking"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pool_lb_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, applied, errorsBy)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	defer metricsSrv.Close()

	log.Info("leaderboard-worker started",
		zap.String("consume", cfg.TopicBalanceChanged),
		zap.String("redis", cfg.RedisAddr),
	)

	ctx := context.Background()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		consumed.Inc()

		var change ev.BalanceChanged
		if jerr := json.Unmarshal(msg.Value, &change); jerr != nil {
			log.Error("unmarshal balance_changed", zap.Error(jerr))
			errorsBy.WithLabelValues("unmarshal").Inc()
			continue
		}

		if err := lb.Set(ctx, change.Username, change.Balance); err != nil {
			log.Error("ranking update", zap.String("username", change.Username), zap.Error(err))
			errorsBy.WithLabelValues("cache").Inc()
			// Backoff simples para evitar flood em caso de Redis fora do ar
			time.Sleep(500 * time.Millisecond)
			continue
		}
		applied.Inc()

		log.Debug("ranking updated",
			zap.String("username", change.Username),
			zap.Int64("balance", change.Balance),
		)
	}
}
