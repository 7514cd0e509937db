// Package journal keeps an audit trail of every game the agent traded:
// the orders it sent, the fills it applied and how each game ended.
// Nothing here is read back into the strategy.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/phenomenon0/courtside/pkg/hoops"
	"github.com/phenomenon0/courtside/pkg/trader/session"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
    game_id         TEXT PRIMARY KEY,
    started_at      INTEGER NOT NULL,
    ended_at        INTEGER,
    exit_reason     TEXT    NOT NULL DEFAULT '',
    pnl             REAL    NOT NULL DEFAULT 0,
    portfolio_value REAL    NOT NULL DEFAULT 0,
    position        REAL    NOT NULL DEFAULT 0,
    home_score      INTEGER NOT NULL DEFAULT 0,
    away_score      INTEGER NOT NULL DEFAULT 0,
    time_remaining  REAL    NOT NULL DEFAULT 0,
    events          INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS orders (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    game_id        TEXT    NOT NULL,
    venue_order_id INTEGER NOT NULL DEFAULT 0,
    kind           TEXT    NOT NULL,
    side           TEXT    NOT NULL,
    quantity       REAL    NOT NULL,
    price          REAL    NOT NULL DEFAULT 0,
    accepted       INTEGER NOT NULL DEFAULT 0,
    created_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    game_id           TEXT    NOT NULL,
    side              TEXT    NOT NULL,
    quantity          REAL    NOT NULL,
    price             REAL    NOT NULL,
    capital_remaining REAL    NOT NULL,
    position          REAL    NOT NULL,
    cash              REAL    NOT NULL,
    filled_at         INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_games_started ON games(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_orders_game   ON orders(game_id);
CREATE INDEX IF NOT EXISTS idx_fills_game    ON fills(game_id);
`

const writeTimeout = 5 * time.Second

// GameRecord is one row of the games table plus per-game counts.
type GameRecord struct {
	GameID         string    `json:"game_id"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at,omitempty"`
	ExitReason     string    `json:"exit_reason,omitempty"`
	PnL            float64   `json:"pnl"`
	PortfolioValue float64   `json:"portfolio_value"`
	Position       float64   `json:"position"`
	HomeScore      int       `json:"home_score"`
	AwayScore      int       `json:"away_score"`
	TimeRemaining  float64   `json:"time_remaining"`
	Events         int       `json:"events"`
	Orders         int       `json:"orders"`
	Fills          int       `json:"fills"`
}

// Finished reports whether the game has an exit recorded.
func (g GameRecord) Finished() bool {
	return !g.EndedAt.IsZero()
}

// OrderRecord is one order sent to the venue.
type OrderRecord struct {
	GameID       string    `json:"game_id"`
	VenueOrderID int64     `json:"venue_order_id"`
	Kind         string    `json:"kind"`
	Side         string    `json:"side"`
	Quantity     float64   `json:"quantity"`
	Price        float64   `json:"price"`
	Accepted     bool      `json:"accepted"`
	CreatedAt    time.Time `json:"created_at"`
}

// FillRecord is one fill applied to the portfolio.
type FillRecord struct {
	GameID           string    `json:"game_id"`
	Side             string    `json:"side"`
	Quantity         float64   `json:"quantity"`
	Price            float64   `json:"price"`
	CapitalRemaining float64   `json:"capital_remaining"`
	Position         float64   `json:"position"`
	Cash             float64   `json:"cash"`
	FilledAt         time.Time `json:"filled_at"`
}

// Journal writes strategy output to SQLite. It implements session.Observer;
// write failures are logged and never reach the strategy.
type Journal struct {
	db  *sql.DB
	log *logrus.Entry
	now func() time.Time

	mu          sync.Mutex
	currentGame string
}

var _ session.Observer = (*Journal)(nil)

// Open opens (or creates) the journal database at path. Use ":memory:" for
// a throwaway journal.
func Open(path string, log *logrus.Entry) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal.Open: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal.Open: apply schema: %w", err)
	}

	if log == nil {
		log = logrus.WithField("component", "journal")
	}
	return &Journal{db: db, log: log, now: time.Now}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartGame records a game as started. Calling it again for the same game
// is a no-op.
func (j *Journal) StartGame(ctx context.Context, gameID string, at time.Time) error {
	if _, err := j.db.ExecContext(ctx,
		`INSERT INTO games (game_id, started_at) VALUES (?, ?) ON CONFLICT(game_id) DO NOTHING`,
		gameID, at.UnixMilli(),
	); err != nil {
		return fmt.Errorf("journal.StartGame: %w", err)
	}
	return nil
}

// RecordOrder stores an order.
func (j *Journal) RecordOrder(ctx context.Context, o hoops.Order) error {
	if err := j.StartGame(ctx, o.GameID, o.Timestamp); err != nil {
		return err
	}
	if _, err := j.db.ExecContext(ctx, `
		INSERT INTO orders (game_id, venue_order_id, kind, side, quantity, price, accepted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.GameID, o.ID, o.Kind.String(), o.Side.String(), o.Quantity, o.Price, boolInt(o.Accepted), o.Timestamp.UnixMilli(),
	); err != nil {
		return fmt.Errorf("journal.RecordOrder: %w", err)
	}
	return nil
}

// RecordFill stores a fill.
func (j *Journal) RecordFill(ctx context.Context, f hoops.Fill) error {
	if err := j.StartGame(ctx, f.GameID, f.Timestamp); err != nil {
		return err
	}
	if _, err := j.db.ExecContext(ctx, `
		INSERT INTO fills (game_id, side, quantity, price, capital_remaining, position, cash, filled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.GameID, f.Side.String(), f.Quantity, f.Price, f.CapitalRemaining, f.Position, f.Cash, f.Timestamp.UnixMilli(),
	); err != nil {
		return fmt.Errorf("journal.RecordFill: %w", err)
	}
	return nil
}

// RecordExit stores how a game ended. The game row is created if it does not
// exist yet and updated in place otherwise.
func (j *Journal) RecordExit(ctx context.Context, x hoops.Exit) error {
	if _, err := j.db.ExecContext(ctx, `
		INSERT INTO games
			(game_id, started_at, ended_at, exit_reason, pnl, portfolio_value, position,
			 home_score, away_score, time_remaining, events)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			ended_at        = excluded.ended_at,
			exit_reason     = excluded.exit_reason,
			pnl             = excluded.pnl,
			portfolio_value = excluded.portfolio_value,
			position        = excluded.position,
			home_score      = excluded.home_score,
			away_score      = excluded.away_score,
			time_remaining  = excluded.time_remaining,
			events          = excluded.events`,
		x.GameID, x.Timestamp.UnixMilli(), x.Timestamp.UnixMilli(), x.Reason.String(), x.PnL,
		x.PortfolioValue, x.Position, x.HomeScore, x.AwayScore, x.TimeRemaining, x.Events,
	); err != nil {
		return fmt.Errorf("journal.RecordExit: %w", err)
	}
	return nil
}

// ListGames returns the most recently started games first. A limit of zero
// or less returns every game.
func (j *Journal) ListGames(ctx context.Context, limit int) ([]GameRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT g.game_id, g.started_at, g.ended_at, g.exit_reason, g.pnl, g.portfolio_value,
		       g.position, g.home_score, g.away_score, g.time_remaining, g.events,
		       (SELECT COUNT(*) FROM orders o WHERE o.game_id = g.game_id),
		       (SELECT COUNT(*) FROM fills f WHERE f.game_id = g.game_id)
		FROM games g
		ORDER BY g.started_at DESC, g.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal.ListGames: query: %w", err)
	}
	defer rows.Close()

	var games []GameRecord
	for rows.Next() {
		var g GameRecord
		var started int64
		var ended sql.NullInt64
		if err := rows.Scan(
			&g.GameID, &started, &ended, &g.ExitReason, &g.PnL, &g.PortfolioValue,
			&g.Position, &g.HomeScore, &g.AwayScore, &g.TimeRemaining, &g.Events,
			&g.Orders, &g.Fills,
		); err != nil {
			return nil, fmt.Errorf("journal.ListGames: scan row: %w", err)
		}
		g.StartedAt = time.UnixMilli(started).UTC()
		if ended.Valid {
			g.EndedAt = time.UnixMilli(ended.Int64).UTC()
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// GameOrders returns the orders of a game in the order they were sent.
func (j *Journal) GameOrders(ctx context.Context, gameID string) ([]OrderRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT game_id, venue_order_id, kind, side, quantity, price, accepted, created_at
		FROM orders WHERE game_id = ? ORDER BY id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("journal.GameOrders: query: %w", err)
	}
	defer rows.Close()

	var orders []OrderRecord
	for rows.Next() {
		var o OrderRecord
		var accepted int
		var created int64
		if err := rows.Scan(&o.GameID, &o.VenueOrderID, &o.Kind, &o.Side, &o.Quantity, &o.Price, &accepted, &created); err != nil {
			return nil, fmt.Errorf("journal.GameOrders: scan row: %w", err)
		}
		o.Accepted = accepted == 1
		o.CreatedAt = time.UnixMilli(created).UTC()
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GameFills returns the fills of a game in the order they were applied.
func (j *Journal) GameFills(ctx context.Context, gameID string) ([]FillRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT game_id, side, quantity, price, capital_remaining, position, cash, filled_at
		FROM fills WHERE game_id = ? ORDER BY id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("journal.GameFills: query: %w", err)
	}
	defer rows.Close()

	var fills []FillRecord
	for rows.Next() {
		var f FillRecord
		var filled int64
		if err := rows.Scan(&f.GameID, &f.Side, &f.Quantity, &f.Price, &f.CapitalRemaining, &f.Position, &f.Cash, &filled); err != nil {
			return nil, fmt.Errorf("journal.GameFills: scan row: %w", err)
		}
		f.FilledAt = time.UnixMilli(filled).UTC()
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// --- session.Observer ---

// OnSignal is not journaled; orders carry the outcome.
func (j *Journal) OnSignal(hoops.Signal) {}

// OnOrder journals an order.
func (j *Journal) OnOrder(o hoops.Order) {
	j.write("order", func(ctx context.Context) error { return j.RecordOrder(ctx, o) })
}

// OnFill journals a fill.
func (j *Journal) OnFill(f hoops.Fill) {
	j.write("fill", func(ctx context.Context) error { return j.RecordFill(ctx, f) })
}

// OnExit journals the end of a game.
func (j *Journal) OnExit(x hoops.Exit) {
	j.write("exit", func(ctx context.Context) error { return j.RecordExit(ctx, x) })
}

// OnSnapshot starts a game row the first time a game ID is seen, so games
// without trades are listed too.
func (j *Journal) OnSnapshot(s hoops.Snapshot) {
	j.mu.Lock()
	seen := s.GameID == j.currentGame
	j.currentGame = s.GameID
	j.mu.Unlock()
	if seen || s.GameID == "" {
		return
	}
	j.write("game", func(ctx context.Context) error { return j.StartGame(ctx, s.GameID, j.now()) })
}

func (j *Journal) write(what string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		j.log.WithError(err).WithField("record", what).Error("journal write failed")
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
