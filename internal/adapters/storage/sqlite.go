package storage

// sqlite.go — ledger de trades, posiciones y redenciones.
//
// Estrategia:
//   - `trades`: una fila por fill ejecutado (buys de entrada y sells de
//     gestión de riesgo). Append-only.
//   - `positions`: UNA fila por condition_id (UPSERT) con lo que queda
//     retenido tras el cierre del período. Se borra al redimir.
//   - `redemptions`: una fila por condición liquidada, con condition_id
//     como PRIMARY KEY — el respaldo duro contra el doble redeem.
//   - Prune automático al arrancar: trades > 90d.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

const schema = `
-- Un fill por fila, append-only
CREATE TABLE IF NOT EXISTS trades (
    id           TEXT PRIMARY KEY,
    asset        TEXT    NOT NULL,
    period_start DATETIME NOT NULL,
    slug         TEXT    NOT NULL,
    condition_id TEXT    NOT NULL,
    side         TEXT    NOT NULL,
    token_id     TEXT    NOT NULL,
    action       TEXT    NOT NULL,
    price        REAL    NOT NULL,
    size         REAL    NOT NULL,
    simulated    INTEGER NOT NULL DEFAULT 0,
    executed_at  DATETIME NOT NULL
);

-- Una fila por posición abierta pendiente de redención
CREATE TABLE IF NOT EXISTS positions (
    condition_id  TEXT PRIMARY KEY,
    asset         TEXT    NOT NULL,
    period_start  DATETIME NOT NULL,
    slug          TEXT    NOT NULL,
    up_token_id   TEXT    NOT NULL,
    down_token_id TEXT    NOT NULL,
    up_shares     REAL    NOT NULL DEFAULT 0,
    down_shares   REAL    NOT NULL DEFAULT 0,
    cost_basis    REAL    NOT NULL DEFAULT 0,
    simulated     INTEGER NOT NULL DEFAULT 0,
    updated_at    DATETIME NOT NULL
);

-- Una fila por condición liquidada; el PRIMARY KEY impide el doble redeem
CREATE TABLE IF NOT EXISTS redemptions (
    condition_id TEXT PRIMARY KEY,
    asset        TEXT    NOT NULL,
    period_start DATETIME NOT NULL,
    slug         TEXT    NOT NULL,
    winner       TEXT    NOT NULL,
    payout       REAL    NOT NULL DEFAULT 0,
    cost_basis   REAL    NOT NULL DEFAULT 0,
    tx_hash      TEXT    NOT NULL DEFAULT '',
    simulated    INTEGER NOT NULL DEFAULT 0,
    redeemed_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_at     ON trades(executed_at DESC);
CREATE INDEX IF NOT EXISTS idx_trades_asset  ON trades(asset, period_start);
CREATE INDEX IF NOT EXISTS idx_redeem_at     ON redemptions(redeemed_at DESC);
`

// trades: 90 días de histórico es suficiente para revisar PnL
const retentionTrades = 90 * 24 * time.Hour

// SQLiteLedger implementa ports.Ledger usando SQLite (pure Go, sin CGo).
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia trades antiguos.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteLedger: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteLedger: apply schema: %w", err)
	}

	l := &SQLiteLedger{db: db}
	l.pruneOld(context.Background())
	return l, nil
}

// RecordTrade persiste un fill ejecutado.
func (l *SQLiteLedger) RecordTrade(ctx context.Context, t domain.TradeRecord) error {
	if _, err := l.db.ExecContext(ctx, `
		INSERT INTO trades
			(id, asset, period_start, slug, condition_id, side, token_id,
			 action, price, size, simulated, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Asset, t.PeriodStart.UTC(), t.Slug, t.ConditionID,
		string(t.Side), t.TokenID, string(t.Action), t.Price, t.Size,
		boolInt(t.Simulated), t.ExecutedAt.UTC(),
	); err != nil {
		return fmt.Errorf("storage.RecordTrade: %w", err)
	}
	return nil
}

// SavePosition hace upsert de la posición abierta de una condición.
// Una posición vacía se elimina en lugar de guardarse.
func (l *SQLiteLedger) SavePosition(ctx context.Context, p domain.Position) error {
	if p.Empty() {
		if _, err := l.db.ExecContext(ctx,
			`DELETE FROM positions WHERE condition_id = ?`, p.ConditionID,
		); err != nil {
			return fmt.Errorf("storage.SavePosition: delete empty: %w", err)
		}
		return nil
	}

	if _, err := l.db.ExecContext(ctx, `
		INSERT INTO positions
			(condition_id, asset, period_start, slug, up_token_id, down_token_id,
			 up_shares, down_shares, cost_basis, simulated, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(condition_id) DO UPDATE SET
			up_shares   = excluded.up_shares,
			down_shares = excluded.down_shares,
			cost_basis  = excluded.cost_basis,
			updated_at  = excluded.updated_at`,
		p.ConditionID, p.Asset, p.PeriodStart.UTC(), p.Slug,
		p.UpTokenID, p.DownTokenID, p.UpShares, p.DownShares,
		p.CostBasis, boolInt(p.Simulated), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("storage.SavePosition: upsert %s: %w", p.ConditionID, err)
	}
	return nil
}

// PendingPositions devuelve todas las posiciones aún no redimidas, para
// reconstruir la watchlist del scheduler tras un reinicio.
func (l *SQLiteLedger) PendingPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT condition_id, asset, period_start, slug, up_token_id,
		       down_token_id, up_shares, down_shares, cost_basis, simulated
		FROM positions
		ORDER BY period_start ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.PendingPositions: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var p domain.Position
		var periodStart string
		var simulated int
		if err := rows.Scan(
			&p.ConditionID, &p.Asset, &periodStart, &p.Slug,
			&p.UpTokenID, &p.DownTokenID, &p.UpShares, &p.DownShares,
			&p.CostBasis, &simulated,
		); err != nil {
			return nil, fmt.Errorf("storage.PendingPositions: scan row: %w", err)
		}
		p.PeriodStart = parseStoredTime(periodStart)
		p.Simulated = simulated == 1
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordRedemption liquida una posición: inserta la redención y borra la
// posición abierta en una sola transacción. El PRIMARY KEY de
// redemptions convierte el segundo intento en ErrAlreadyRedeemed.
func (l *SQLiteLedger) RecordRedemption(ctx context.Context, r domain.RedemptionRecord) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.RecordRedemption: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO redemptions
			(condition_id, asset, period_start, slug, winner, payout,
			 cost_basis, tx_hash, simulated, redeemed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(condition_id) DO NOTHING`,
		r.ConditionID, r.Asset, r.PeriodStart.UTC(), r.Slug,
		string(r.Winner), r.Payout, r.CostBasis, r.TxHash,
		boolInt(r.Simulated), r.RedeemedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.RecordRedemption: insert %s: %w", r.ConditionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ports.ErrAlreadyRedeemed
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM positions WHERE condition_id = ?`, r.ConditionID,
	); err != nil {
		return fmt.Errorf("storage.RecordRedemption: clear position: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.RecordRedemption: commit: %w", err)
	}
	return nil
}

// Totals agrega el PnL realizado para el display de estado.
func (l *SQLiteLedger) Totals(ctx context.Context) (domain.ProfitTotals, error) {
	var t domain.ProfitTotals

	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN action = 'BUY'  THEN price * size ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN action = 'SELL' THEN price * size ELSE 0 END), 0)
		FROM trades`).Scan(&t.Trades, &t.Spent, &t.SellRevenue)
	if err != nil {
		return t, fmt.Errorf("storage.Totals: trades: %w", err)
	}

	err = l.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(payout), 0)
		FROM redemptions`).Scan(&t.Redemptions, &t.Redeemed)
	if err != nil {
		return t, fmt.Errorf("storage.Totals: redemptions: %w", err)
	}
	return t, nil
}

// Close cierra la conexión a la base de datos.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// --- helpers internos ---

// pruneOld elimina trades antiguos para mantener la DB ligera.
func (l *SQLiteLedger) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionTrades)
	l.db.ExecContext(ctx, `DELETE FROM trades WHERE executed_at < ?`, cutoff)
}

// parseStoredTime acepta los dos formatos que el driver puede devolver.
func parseStoredTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
