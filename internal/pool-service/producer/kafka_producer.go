package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/office-betting-pool/pkg/contracts/events"
)

// KafkaPublisher publica os eventos do bolão, um writer por tópico.
type KafkaPublisher struct {
	BetCreated     *kafka.Writer
	BetPlaced      *kafka.Writer
	BetResolved    *kafka.Writer
	BalanceChanged *kafka.Writer
}

func (p *KafkaPublisher) PublishBetCreated(ctx context.Context, e events.BetCreated) error {
	e.Ts = time.Now()
	return writeJSON(ctx, p.BetCreated, e.BetID, e)
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.Ts = time.Now()
	return writeJSON(ctx, p.BetPlaced, e.BetID, e)
}

func (p *KafkaPublisher) PublishBetResolved(ctx context.Context, e events.BetResolved) error {
	e.Ts = time.Now()
	return writeJSON(ctx, p.BetResolved, e.BetID, e)
}

func (p *KafkaPublisher) PublishBalanceChanged(ctx context.Context, e events.BalanceChanged) error {
	return writeJSON(ctx, p.BalanceChanged, e.Username, e)
}

func writeJSON(ctx context.Context, w *kafka.Writer, key string, payload any) error {
	b, _ := json.Marshal(payload)
	return w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: b,
		Time:  time.Now(),
	})
}

// Nop descarta todos os eventos. Usado no modo local sem Kafka.
type Nop struct{}

func (Nop) PublishBetCreated(context.Context, events.BetCreated) error         { return nil }
func (Nop) PublishBetPlaced(context.Context, events.BetPlaced) error           { return nil }
func (Nop) PublishBetResolved(context.Context, events.BetResolved) error       { return nil }
func (Nop) PublishBalanceChanged(context.Context, events.BalanceChanged) error { return nil }
