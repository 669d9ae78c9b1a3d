package leaderboard

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/office-betting-pool/internal/ledger"
)

// Chave do sorted set com o ranking por saldo.
const Key = "leaderboard:tokens"

// Cache mantém o leaderboard em um ZSET do Redis: member = username,
// score = saldo. Alimentado pelo leaderboard-worker a partir dos eventos
// balance_changed; lido pelo pool-service.
type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

// Set grava o saldo atual de um usuário no ranking.
func (c *Cache) Set(ctx context.Context, username string, tokens int64) error {
	return c.R.ZAdd(ctx, Key, redis.Z{Score: float64(tokens), Member: username}).Err()
}

// Remove tira um usuário do ranking.
func (c *Cache) Remove(ctx context.Context, username string) error {
	return c.R.ZRem(ctx, Key, username).Err()
}

// Top retorna as n maiores posições; n <= 0 retorna o ranking inteiro.
// ok == false indica ranking vazio (worker ainda não populou); o chamador
// decide o fallback.
func (c *Cache) Top(ctx context.Context, n int) ([]ledger.Standing, bool, error) {
	// -1 é o último membro na indexação do ZREVRANGE
	stop := int64(-1)
	if n > 0 {
		stop = int64(n) - 1
	}
	zs, err := c.R.ZRevRangeWithScores(ctx, Key, 0, stop).Result()
	if err != nil {
		return nil, false, err
	}
	if len(zs) == 0 {
		return nil, false, nil
	}
	standings := make([]ledger.Standing, 0, len(zs))
	for _, z := range zs {
		name, _ := z.Member.(string)
		standings = append(standings, ledger.Standing{Name: name, Tokens: int64(z.Score)})
	}
	return standings, true, nil
}
