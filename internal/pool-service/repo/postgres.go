package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/office-betting-pool/internal/ledger"
)

// Postgres implementa os stores do ledger em banco Postgres.
// Esquema em migrations/0001_init.sql.
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório sobre a conexão dada.
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) GetAllUsers(ctx context.Context) ([]ledger.User, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT name, tokens, unlimited, is_admin, bets_created, bets_participated, created_at
		FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (p *Postgres) GetUser(ctx context.Context, name string) (*ledger.User, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT name, tokens, unlimited, is_admin, bets_created, bets_participated, created_at
		FROM users WHERE name=$1`, name)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (p *Postgres) SaveUser(ctx context.Context, u *ledger.User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (name, tokens, unlimited, is_admin, bets_created, bets_participated, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (name) DO UPDATE SET
			tokens=EXCLUDED.tokens,
			unlimited=EXCLUDED.unlimited,
			is_admin=EXCLUDED.is_admin,
			bets_created=EXCLUDED.bets_created,
			bets_participated=EXCLUDED.bets_participated`,
		u.Name, u.Tokens, u.Unlimited, u.IsAdmin,
		pq.Array(u.BetsCreated), pq.Array(u.BetsParticipated), u.CreatedAt,
	)
	return err
}

func (p *Postgres) SaveUsers(ctx context.Context, users []*ledger.User) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, u := range users {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (name, tokens, unlimited, is_admin, bets_created, bets_participated, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (name) DO UPDATE SET
				tokens=EXCLUDED.tokens,
				unlimited=EXCLUDED.unlimited,
				is_admin=EXCLUDED.is_admin,
				bets_created=EXCLUDED.bets_created,
				bets_participated=EXCLUDED.bets_participated`,
			u.Name, u.Tokens, u.Unlimited, u.IsAdmin,
			pq.Array(u.BetsCreated), pq.Array(u.BetsParticipated), u.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) DeleteUser(ctx context.Context, name string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE name=$1`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (p *Postgres) GetAllBets(ctx context.Context) ([]ledger.Bet, error) {
	rows, err := p.db.QueryContext(ctx, betSelect+` FROM bets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := map[string]*ledger.Bet{}
	var order []string
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		byID[b.ID] = b
		order = append(order, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := p.db.QueryContext(ctx, `
		SELECT bet_id, name, option, stake, joined_at
		FROM bet_participants ORDER BY joined_at`)
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var betID string
		var pt ledger.Participant
		if err := prows.Scan(&betID, &pt.Name, &pt.Option, &pt.Stake, &pt.Timestamp); err != nil {
			return nil, err
		}
		if b, ok := byID[betID]; ok {
			b.Participants = append(b.Participants, pt)
		}
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}

	out := make([]ledger.Bet, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

func (p *Postgres) GetBet(ctx context.Context, id string) (*ledger.Bet, error) {
	row := p.db.QueryRowContext(ctx, betSelect+` FROM bets WHERE id=$1`, id)
	b, err := scanBet(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT name, option, stake, joined_at
		FROM bet_participants WHERE bet_id=$1 ORDER BY joined_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var pt ledger.Participant
		if err := rows.Scan(&pt.Name, &pt.Option, &pt.Stake, &pt.Timestamp); err != nil {
			return nil, err
		}
		b.Participants = append(b.Participants, pt)
	}
	return b, rows.Err()
}

// SaveBet grava a aposta e a lista de participantes na mesma transação,
// segurando o lock da linha da aposta durante a troca dos participantes.
func (p *Postgres) SaveBet(ctx context.Context, b *ledger.Bet) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var resolvedAt sql.NullTime
	if !b.ResolvedAt.IsZero() {
		resolvedAt = sql.NullTime{Time: b.ResolvedAt, Valid: true}
	}

	var potTotal, potPerWinner, potHouse sql.NullInt64
	var potWinnerCount sql.NullInt32
	var potOption sql.NullString
	winnerNames := []string{}
	if b.PotSplit != nil {
		potTotal = sql.NullInt64{Int64: b.PotSplit.TotalPot, Valid: true}
		potPerWinner = sql.NullInt64{Int64: b.PotSplit.WinningsPerWinner, Valid: true}
		potHouse = sql.NullInt64{Int64: b.PotSplit.HouseCollected, Valid: true}
		potWinnerCount = sql.NullInt32{Int32: int32(b.PotSplit.WinnerCount), Valid: true}
		potOption = sql.NullString{String: b.PotSplit.WinningOption, Valid: true}
		winnerNames = b.PotSplit.WinnerNames
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bets (id, creator, description, options, deadline, status, creator_stake,
			winner, resolved_by, resolved_at,
			pot_total, pot_winner_count, pot_winning_option, pot_winnings_per_winner,
			pot_house_collected, pot_winner_names, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
			status=EXCLUDED.status,
			winner=EXCLUDED.winner,
			resolved_by=EXCLUDED.resolved_by,
			resolved_at=EXCLUDED.resolved_at,
			pot_total=EXCLUDED.pot_total,
			pot_winner_count=EXCLUDED.pot_winner_count,
			pot_winning_option=EXCLUDED.pot_winning_option,
			pot_winnings_per_winner=EXCLUDED.pot_winnings_per_winner,
			pot_house_collected=EXCLUDED.pot_house_collected,
			pot_winner_names=EXCLUDED.pot_winner_names`,
		b.ID, b.Creator, b.Description, pq.Array(b.Options), b.Deadline, b.Status, b.CreatorStake,
		b.Winner, b.ResolvedBy, resolvedAt,
		potTotal, potWinnerCount, potOption, potPerWinner, potHouse, pq.Array(winnerNames), b.CreatedAt,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `SELECT 1 FROM bets WHERE id=$1 FOR UPDATE`, b.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bet_participants WHERE bet_id=$1`, b.ID); err != nil {
		return err
	}
	for _, pt := range b.Participants {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bet_participants (bet_id, name, option, stake, joined_at)
			VALUES ($1,$2,$3,$4,$5)`,
			b.ID, pt.Name, pt.Option, pt.Stake, pt.Timestamp,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) Append(ctx context.Context, e ledger.Entry) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO balance_history (username, ts, amount, description, balance)
		VALUES ($1,$2,$3,$4,$5)`,
		e.Username, e.Timestamp, e.Amount, e.Description, e.Balance)
	return err
}

func (p *Postgres) ListFor(ctx context.Context, username string) ([]ledger.Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT username, ts, amount, description, balance
		FROM balance_history WHERE username=$1 ORDER BY ts`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.Username, &e.Timestamp, &e.Amount, &e.Description, &e.Balance); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const betSelect = `
	SELECT id, creator, description, options, deadline, status, creator_stake,
		winner, resolved_by, resolved_at,
		pot_total, pot_winner_count, pot_winning_option, pot_winnings_per_winner,
		pot_house_collected, pot_winner_names, created_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanBet(row rowScanner) (*ledger.Bet, error) {
	var b ledger.Bet
	var options, winnerNames pq.StringArray
	var resolvedAt sql.NullTime
	var potTotal, potPerWinner, potHouse sql.NullInt64
	var potWinnerCount sql.NullInt32
	var potOption sql.NullString

	err := row.Scan(&b.ID, &b.Creator, &b.Description, &options, &b.Deadline, &b.Status, &b.CreatorStake,
		&b.Winner, &b.ResolvedBy, &resolvedAt,
		&potTotal, &potWinnerCount, &potOption, &potPerWinner, &potHouse, &winnerNames, &b.CreatedAt)
	if err != nil {
		return nil, err
	}

	b.Options = []string(options)
	b.Participants = []ledger.Participant{}
	if resolvedAt.Valid {
		b.ResolvedAt = resolvedAt.Time
	}
	if potTotal.Valid {
		b.PotSplit = &ledger.PotSplit{
			TotalPot:          potTotal.Int64,
			WinnerCount:       int(potWinnerCount.Int32),
			WinningOption:     potOption.String,
			WinningsPerWinner: potPerWinner.Int64,
			HouseCollected:    potHouse.Int64,
			WinnerNames:       []string(winnerNames),
		}
	}
	return &b, nil
}

func scanUser(row rowScanner) (*ledger.User, error) {
	var u ledger.User
	var created, participated pq.StringArray
	var createdAt time.Time
	err := row.Scan(&u.Name, &u.Tokens, &u.Unlimited, &u.IsAdmin, &created, &participated, &createdAt)
	if err != nil {
		return nil, err
	}
	u.BetsCreated = []string(created)
	u.BetsParticipated = []string(participated)
	u.CreatedAt = createdAt
	return &u, nil
}
