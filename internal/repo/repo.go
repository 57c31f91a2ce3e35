package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"enviroplan/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const activityColumns = `id,date,process_id,task_id,COALESCE(resources,'') AS resources,person_count,
COALESCE(assigned_personnel,'') AS assigned_personnel,status,evidence,audit_status,audit_comment,audited_by,audited_at,
created_by,created_at,updated_at`

type activityScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row activityScanner) (domain.Activity, error) {
	var a domain.Activity
	var evidence, auditStatus, auditComment, auditedBy, auditedAt sql.NullString
	err := row.Scan(&a.ID, &a.Date, &a.ProcessID, &a.TaskID, &a.Resources, &a.PersonCount,
		&a.AssignedPersonnel, &a.Status, &evidence, &auditStatus, &auditComment, &auditedBy, &auditedAt,
		&a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if evidence.Valid {
		a.Evidence = &evidence.String
	}
	if auditStatus.Valid {
		audit := &domain.Audit{Status: domain.AuditStatus(auditStatus.String)}
		if auditComment.Valid {
			audit.Comment = auditComment.String
		}
		if auditedBy.Valid {
			audit.AuditedBy = &auditedBy.String
		}
		if auditedAt.Valid {
			audit.AuditedAt = &auditedAt.String
		}
		a.Audit = audit
	}
	return a, nil
}

func activityArgs(a domain.Activity) []any {
	var auditStatus, auditComment, auditedBy, auditedAt any
	if a.Audit != nil {
		auditStatus = string(a.Audit.Status)
		auditComment = nullable(a.Audit.Comment)
		auditedBy = nullableStringPtr(a.Audit.AuditedBy)
		auditedAt = nullableStringPtr(a.Audit.AuditedAt)
	}
	return []any{
		a.Date, a.ProcessID, a.TaskID, nullable(a.Resources), a.PersonCount,
		nullable(a.AssignedPersonnel), string(a.Status), nullableStringPtr(a.Evidence),
		auditStatus, auditComment, auditedBy, auditedAt,
		a.CreatedBy, a.CreatedAt, a.UpdatedAt,
	}
}

func (r Repo) InsertActivity(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	args := append([]any{a.ID}, activityArgs(a)...)
	_, err := tx.ExecContext(ctx, `INSERT INTO activities(id,date,process_id,task_id,resources,person_count,
assigned_personnel,status,evidence,audit_status,audit_comment,audited_by,audited_at,created_by,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, args...)
	return err
}

// UpsertActivity writes the full row, replacing any existing record.
// Used by the cloud pull path where remote wins.
func (r Repo) UpsertActivity(ctx context.Context, a domain.Activity) error {
	args := append([]any{a.ID}, activityArgs(a)...)
	_, err := r.DB.ExecContext(ctx, `INSERT INTO activities(id,date,process_id,task_id,resources,person_count,
assigned_personnel,status,evidence,audit_status,audit_comment,audited_by,audited_at,created_by,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET date=excluded.date, process_id=excluded.process_id, task_id=excluded.task_id,
resources=excluded.resources, person_count=excluded.person_count, assigned_personnel=excluded.assigned_personnel,
status=excluded.status, evidence=excluded.evidence, audit_status=excluded.audit_status,
audit_comment=excluded.audit_comment, audited_by=excluded.audited_by, audited_at=excluded.audited_at,
created_by=excluded.created_by, created_at=excluded.created_at, updated_at=excluded.updated_at`, args...)
	return err
}

func (r Repo) UpdateActivity(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	args := append(activityArgs(a), a.ID)
	res, err := tx.ExecContext(ctx, `UPDATE activities SET date=?,process_id=?,task_id=?,resources=?,person_count=?,
assigned_personnel=?,status=?,evidence=?,audit_status=?,audit_comment=?,audited_by=?,audited_at=?,
created_by=?,created_at=?,updated_at=? WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	return scanActivity(r.DB.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id=?`, id))
}

// ActivityFilters narrows ListActivities. Zero values mean no filter.
type ActivityFilters struct {
	Date      string
	ProcessID string
	Status    domain.ActivityStatus
}

func (r Repo) ListActivities(ctx context.Context, f ActivityFilters) ([]domain.Activity, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Date != "" {
		clauses = append(clauses, "date=?")
		args = append(args, f.Date)
	}
	if f.ProcessID != "" {
		clauses = append(clauses, "process_id=?")
		args = append(args, f.ProcessID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, string(f.Status))
	}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// DeleteActivity removes a row. A missing id is not an error; the
// caller treats it as a no-op.
func (r Repo) DeleteActivity(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE id=?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) CountActivitiesByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM activities GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
