package repo

import (
	"context"
	"database/sql"
	"time"
)

// OutboxEntry is one pending cloud write. Entries coalesce per record:
// a newer write for the same table/id replaces the queued payload.
type OutboxEntry struct {
	ID        int64
	Table     string
	RecordID  string
	Payload   string
	Attempts  int
	LastError string
	CreatedAt string
}

func (r Repo) EnqueueOutbox(ctx context.Context, tx *sql.Tx, table, recordID, payload string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT INTO outbox(tbl,record_id,payload_json,attempts,created_at) VALUES (?,?,?,0,?)
ON CONFLICT(tbl,record_id) DO UPDATE SET payload_json=excluded.payload_json, attempts=0, last_error=NULL, created_at=excluded.created_at`,
		table, recordID, payload, now)
	return err
}

func (r Repo) PendingOutbox(ctx context.Context, limit int) ([]OutboxEntry, error) {
	query := `SELECT id,tbl,record_id,payload_json,attempts,COALESCE(last_error,''),created_at FROM outbox ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.Table, &e.RecordID, &e.Payload, &e.Attempts, &e.LastError, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) DeleteOutbox(ctx context.Context, id int64) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM outbox WHERE id=?`, id)
	return err
}

func (r Repo) RecordOutboxFailure(ctx context.Context, id int64, lastError string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE outbox SET attempts=attempts+1, last_error=? WHERE id=?`, lastError, id)
	return err
}
