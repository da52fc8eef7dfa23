package store

import (
	"context"
	"database/sql"
	"encoding/json"
	errs "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fableweaver/fableweaver/internal/game"
	"github.com/fableweaver/fableweaver/internal/util"
)

var ErrNoChange = errs.New("no change")

// DB wraps gorm.DB for repositories and exposes Close.
type DB struct {
	gorm *gorm.DB
	sql  *sql.DB
}

func (d *DB) Close() error   { return d.sql.Close() }
func (d *DB) Gorm() *gorm.DB { return d.gorm }

// Open connects to the local database per config.
func Open(ctx context.Context, cfg util.Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("missing DSN")
	}
	gdb, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sdb, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sdb.SetConnMaxLifetime(30 * time.Minute)
	sdb.SetMaxOpenConns(10)
	sdb.SetMaxIdleConns(5)
	if err := sdb.PingContext(ctx); err != nil {
		return nil, err
	}
	return &DB{gorm: gdb, sql: sdb}, nil
}

// SnapshotRepo persists session snapshots, one row per store name. This is
// the durable-local-storage layer: the active session is a single upserted
// row under a fixed name.
type SnapshotRepo struct{ db *DB }

func NewSnapshotRepo(db *DB) *SnapshotRepo { return &SnapshotRepo{db: db} }

func (r *SnapshotRepo) Save(ctx context.Context, name string, payload json.RawMessage) error {
	err := r.db.gorm.WithContext(ctx).Exec(`INSERT INTO snapshots(name, payload, updated_at) VALUES (?,?,now())
	ON CONFLICT (name) DO UPDATE SET payload=EXCLUDED.payload, updated_at=now()`, name, []byte(payload)).Error
	return wrap(err, "save snapshot")
}

func (r *SnapshotRepo) Load(ctx context.Context, name string) (json.RawMessage, error) {
	row := r.db.gorm.WithContext(ctx).Raw(`SELECT payload FROM snapshots WHERE name = ?`, name).Row()
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errs.Is(err, sql.ErrNoRows) {
			return nil, nil // absent snapshot is not an error
		}
		return nil, wrap(err, "load snapshot")
	}
	return payload, nil
}

func (r *SnapshotRepo) Delete(ctx context.Context, name string) error {
	return wrap(r.db.gorm.WithContext(ctx).Exec(`DELETE FROM snapshots WHERE name = ?`, name).Error, "delete snapshot")
}

// ChoiceJournalRepo mirrors the in-memory choice audit trail durably.
type ChoiceJournalRepo struct{ db *DB }

func NewChoiceJournalRepo(db *DB) *ChoiceJournalRepo { return &ChoiceJournalRepo{db: db} }

func (r *ChoiceJournalRepo) Append(ctx context.Context, sessionID string, rec game.ChoiceRecord) error {
	err := r.db.gorm.WithContext(ctx).Exec(`INSERT INTO choice_journal(id, session_id, scene_id, choice_id, choice_text, made_at)
	VALUES (?,?,?,?,?,?)`, uuid.New(), sessionID, rec.SceneID, rec.ChoiceID, rec.ChoiceText, rec.At).Error
	return wrap(err, "append choice")
}

func (r *ChoiceJournalRepo) ListRecent(ctx context.Context, sessionID string, limit int) ([]game.ChoiceRecord, error) {
	rows, err := r.db.gorm.WithContext(ctx).Raw(`SELECT scene_id, choice_id, choice_text, made_at FROM choice_journal
	WHERE session_id = ? ORDER BY made_at DESC LIMIT ?`, sessionID, limit).Rows()
	if err != nil {
		return nil, wrap(err, "list choices")
	}
	defer rows.Close()
	var out []game.ChoiceRecord
	for rows.Next() {
		var rec game.ChoiceRecord
		if err := rows.Scan(&rec.SceneID, &rec.ChoiceID, &rec.ChoiceText, &rec.At); err != nil {
			return nil, wrap(err, "scan choice")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// WithTx executes fn within a database transaction.
func (d *DB) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.gorm.WithContext(ctx).Transaction(fn)
}

func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}
