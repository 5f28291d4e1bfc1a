package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/deus-ex/internal/world"
)

// SQLiteStore keeps the snapshot in a single-row saves table, with the
// collections serialized as JSON columns.
type SQLiteStore struct {
	conn *sqlx.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		id TEXT PRIMARY KEY,
		stats_json TEXT NOT NULL,
		factions_json TEXT NOT NULL,
		figures_json TEXT NOT NULL,
		logs_json TEXT NOT NULL,
		decision_json TEXT,
		saved_at INTEGER NOT NULL
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

type saveRow struct {
	ID           string         `db:"id"`
	StatsJSON    string         `db:"stats_json"`
	FactionsJSON string         `db:"factions_json"`
	FiguresJSON  string         `db:"figures_json"`
	LogsJSON     string         `db:"logs_json"`
	DecisionJSON sql.NullString `db:"decision_json"`
	SavedAt      int64          `db:"saved_at"`
}

// Save writes the snapshot into the single save slot.
func (s *SQLiteStore) Save(ctx context.Context, snap *world.Snapshot) error {
	statsJSON, err := json.Marshal(snap.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	factionsJSON, err := json.Marshal(snap.Factions)
	if err != nil {
		return fmt.Errorf("marshal factions: %w", err)
	}
	figuresJSON, err := json.Marshal(snap.Figures)
	if err != nil {
		return fmt.Errorf("marshal figures: %w", err)
	}
	logsJSON, err := json.Marshal(snap.Logs)
	if err != nil {
		return fmt.Errorf("marshal logs: %w", err)
	}
	var decisionJSON sql.NullString
	if snap.PendingDecision != nil {
		b, err := json.Marshal(snap.PendingDecision)
		if err != nil {
			return fmt.Errorf("marshal decision: %w", err)
		}
		decisionJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO saves (id, stats_json, factions_json, figures_json, logs_json, decision_json, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stats_json=excluded.stats_json,
			factions_json=excluded.factions_json,
			figures_json=excluded.figures_json,
			logs_json=excluded.logs_json,
			decision_json=excluded.decision_json,
			saved_at=excluded.saved_at`,
		saveKey, string(statsJSON), string(factionsJSON), string(figuresJSON),
		string(logsJSON), decisionJSON, snap.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load reads the saved snapshot, or ErrNoSave when none exists.
func (s *SQLiteStore) Load(ctx context.Context) (*world.Snapshot, error) {
	var row saveRow
	err := s.conn.GetContext(ctx, &row, "SELECT * FROM saves WHERE id = ?", saveKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSave
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	snap := &world.Snapshot{SavedAt: row.SavedAt}
	if err := json.Unmarshal([]byte(row.StatsJSON), &snap.Stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}
	if err := json.Unmarshal([]byte(row.FactionsJSON), &snap.Factions); err != nil {
		return nil, fmt.Errorf("unmarshal factions: %w", err)
	}
	if err := json.Unmarshal([]byte(row.FiguresJSON), &snap.Figures); err != nil {
		return nil, fmt.Errorf("unmarshal figures: %w", err)
	}
	if err := json.Unmarshal([]byte(row.LogsJSON), &snap.Logs); err != nil {
		return nil, fmt.Errorf("unmarshal logs: %w", err)
	}
	if row.DecisionJSON.Valid {
		if err := json.Unmarshal([]byte(row.DecisionJSON.String), &snap.PendingDecision); err != nil {
			return nil, fmt.Errorf("unmarshal decision: %w", err)
		}
	}
	return snap, nil
}

// Clear removes the save slot.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, "DELETE FROM saves WHERE id = ?", saveKey)
	if err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}
