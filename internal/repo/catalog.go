package repo

import (
	"context"
	"database/sql"

	"enviroplan/internal/domain"
)

func (r Repo) InsertProcess(ctx context.Context, tx *sql.Tx, p domain.Process) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO processes(id,name) VALUES (?,?)`, p.ID, p.Name)
	return err
}

func (r Repo) UpsertProcess(ctx context.Context, tx *sql.Tx, p domain.Process) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO processes(id,name) VALUES (?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name`, p.ID, p.Name)
	return err
}

func (r Repo) GetProcess(ctx context.Context, id string) (domain.Process, error) {
	var p domain.Process
	err := r.DB.QueryRowContext(ctx, `SELECT id,name FROM processes WHERE id=?`, id).Scan(&p.ID, &p.Name)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) ListProcesses(ctx context.Context) ([]domain.Process, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name FROM processes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Process
	for rows.Next() {
		var p domain.Process
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// DeleteProcess removes the process and every task under it. Activity
// rows keep their references; that rule belongs to the engine.
func (r Repo) DeleteProcess(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE process_id=?`, id); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM processes WHERE id=?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,process_id,name) VALUES (?,?,?)`, t.ID, t.ProcessID, t.Name)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var t domain.Task
	err := r.DB.QueryRowContext(ctx, `SELECT id,process_id,name FROM tasks WHERE id=?`, id).Scan(&t.ID, &t.ProcessID, &t.Name)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) ListTasks(ctx context.Context, processID string) ([]domain.Task, error) {
	query := `SELECT id,process_id,name FROM tasks ORDER BY id`
	args := []any{}
	if processID != "" {
		query = `SELECT id,process_id,name FROM tasks WHERE process_id=? ORDER BY id`
		args = append(args, processID)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		var t domain.Task
		if err := rows.Scan(&t.ID, &t.ProcessID, &t.Name); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CatalogCounts reports how many processes and tasks exist; used to
// decide whether the default catalog should be seeded.
func (r Repo) CatalogCounts(ctx context.Context) (processes, tasks int, err error) {
	if err = r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM processes`).Scan(&processes); err != nil {
		return 0, 0, err
	}
	if err = r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&tasks); err != nil {
		return 0, 0, err
	}
	return processes, tasks, nil
}
