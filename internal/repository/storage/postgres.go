package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	domain "github.com/oshokin/alarm-engine/internal/domain/alarm"
)

// schema creates the tables used by PostgresRepository.
const schema = `
CREATE TABLE IF NOT EXISTS alarms (
	id              TEXT PRIMARY KEY,
	partition_owner TEXT NOT NULL,
	owner_id        TEXT,
	alarm_time      TEXT NOT NULL,
	label           TEXT NOT NULL,
	days            INTEGER[] NOT NULL,
	enabled         BOOLEAN NOT NULL,
	voice_mood      TEXT NOT NULL,
	sound           TEXT NOT NULL,
	difficulty      TEXT NOT NULL,
	snooze_enabled  BOOLEAN NOT NULL,
	snooze_interval INTEGER NOT NULL,
	snooze_count    INTEGER NOT NULL,
	snooze_max      INTEGER NOT NULL,
	battle_id       TEXT,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS alarms_partition_owner_idx ON alarms (partition_owner);
CREATE TABLE IF NOT EXISTS alarm_events (
	id              TEXT PRIMARY KEY,
	partition_owner TEXT NOT NULL,
	alarm_id        TEXT NOT NULL,
	kind            TEXT NOT NULL,
	method          TEXT,
	owner_id        TEXT,
	snooze_minutes  INTEGER NOT NULL DEFAULT 0,
	occurred_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS alarm_events_partition_owner_idx ON alarm_events (partition_owner, occurred_at);
`

const (
	selectAlarmsQuery = `SELECT id, owner_id, alarm_time, label, days, enabled, voice_mood, sound, difficulty,
	snooze_enabled, snooze_interval, snooze_count, snooze_max, battle_id, created_at, updated_at
FROM alarms WHERE partition_owner = $1 ORDER BY created_at, id`

	deleteAlarmsQuery = `DELETE FROM alarms WHERE partition_owner = $1`

	insertAlarmQuery = `INSERT INTO alarms (id, partition_owner, owner_id, alarm_time, label, days, enabled,
	voice_mood, sound, difficulty, snooze_enabled, snooze_interval, snooze_count, snooze_max, battle_id,
	created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	insertEventQuery = `INSERT INTO alarm_events (id, partition_owner, alarm_id, kind, method, owner_id,
	snooze_minutes, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`

	selectEventsQuery = `SELECT id, alarm_id, kind, method, owner_id, snooze_minutes, occurred_at
FROM alarm_events WHERE partition_owner = $1 ORDER BY occurred_at, id`
)

// PostgresRepository persists partitions in PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository wraps an open database handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres opens a lib/pq connection pool and verifies it.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// EnsureSchema creates missing tables.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	return nil
}

// RetrieveAlarms selects the partition alarms.
func (r *PostgresRepository) RetrieveAlarms(ctx context.Context, ownerID string) ([]*domain.Alarm, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwner
	}

	rows, err := r.db.QueryContext(ctx, selectAlarmsQuery, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query alarms: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	result := []*domain.Alarm{}

	for rows.Next() {
		var (
			a                     domain.Alarm
			owner, battle         sql.NullString
			days                  []int64
			voiceMood, difficulty string
		)

		err = rows.Scan(
			&a.ID, &owner, &a.Time, &a.Label, pq.Array(&days), &a.Enabled, &voiceMood, &a.Sound, &difficulty,
			&a.Snooze.Enabled, &a.Snooze.IntervalMinutes, &a.Snooze.Count, &a.Snooze.Max, &battle,
			&a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alarm: %w", err)
		}

		a.OwnerID = owner.String
		a.BattleID = battle.String
		a.VoiceMood = domain.VoiceMood(voiceMood)
		a.Difficulty = domain.Difficulty(difficulty)
		a.Days = make([]time.Weekday, 0, len(days))

		for _, day := range days {
			a.Days = append(a.Days, time.Weekday(day))
		}

		result = append(result, &a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alarms: %w", err)
	}

	return result, nil
}

// StoreAlarms replaces the partition alarms inside one transaction.
func (r *PostgresRepository) StoreAlarms(ctx context.Context, alarms []*domain.Alarm, ownerID string) error {
	if ownerID == "" {
		return ErrInvalidOwner
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.ExecContext(ctx, deleteAlarmsQuery, ownerID); err != nil {
		return fmt.Errorf("delete alarms: %w", err)
	}

	for _, a := range alarms {
		days := make([]int64, 0, len(a.Days))
		for _, day := range a.Days {
			days = append(days, int64(day))
		}

		_, err = tx.ExecContext(ctx, insertAlarmQuery,
			a.ID, ownerID, nullString(a.OwnerID), a.Time, a.Label, pq.Array(days), a.Enabled,
			string(a.VoiceMood), a.Sound, string(a.Difficulty), a.Snooze.Enabled, a.Snooze.IntervalMinutes,
			a.Snooze.Count, a.Snooze.Max, nullString(a.BattleID), a.CreatedAt, a.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert alarm %s: %w", a.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit alarms: %w", err)
	}

	return nil
}

// StoreAlarmEvents inserts events; duplicates by id are ignored.
func (r *PostgresRepository) StoreAlarmEvents(ctx context.Context, events []domain.Event, ownerID string) error {
	if ownerID == "" {
		return ErrInvalidOwner
	}

	for i := range events {
		event := &events[i]

		_, err := r.db.ExecContext(ctx, insertEventQuery,
			event.ID, ownerID, event.AlarmID, string(event.Kind), nullString(string(event.Method)),
			nullString(event.OwnerID), event.SnoozeMinutes, event.OccurredAt,
		)
		if err != nil {
			return fmt.Errorf("insert event %s: %w", event.ID, err)
		}
	}

	return nil
}

// RetrieveAlarmEvents selects the partition history.
func (r *PostgresRepository) RetrieveAlarmEvents(ctx context.Context, ownerID string) ([]domain.Event, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwner
	}

	rows, err := r.db.QueryContext(ctx, selectEventsQuery, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	result := []domain.Event{}

	for rows.Next() {
		var (
			event         domain.Event
			kind          string
			method, owner sql.NullString
		)

		if err = rows.Scan(&event.ID, &event.AlarmID, &kind, &method, &owner, &event.SnoozeMinutes,
			&event.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		event.Kind = domain.EventKind(kind)
		event.Method = domain.Method(method.String)
		event.OwnerID = owner.String
		result = append(result, event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return result, nil
}

// nullString maps empty strings to SQL NULL.
func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
