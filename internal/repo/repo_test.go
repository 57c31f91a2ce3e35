package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"enviroplan/internal/db"
	"enviroplan/internal/domain"
	"enviroplan/internal/migrate"
	"enviroplan/internal/repo"
)

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func inTx(t *testing.T, r repo.Repo, fn func(tx *sql.Tx) error) {
	t.Helper()
	tx, err := r.DB.Begin()
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func sample(id, date, processID string, status domain.ActivityStatus) domain.Activity {
	return domain.Activity{
		ID: id, Date: date, ProcessID: processID, TaskID: "T1",
		PersonCount: 1, Status: status,
		CreatedBy: "ana", CreatedAt: "2026-08-29T08:00:00Z", UpdatedAt: "2026-08-29T08:00:00Z",
	}
}

func TestActivityAuditRoundTrip(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	a := sample("a1", "2026-08-29", "P1", domain.StatusExecuted)
	evidence := "photo"
	auditor := "sofia"
	auditedAt := "2026-08-29T12:00:00Z"
	a.Evidence = &evidence
	a.Audit = &domain.Audit{Status: domain.AuditApproved, Comment: "ok", AuditedBy: &auditor, AuditedAt: &auditedAt}
	inTx(t, r, func(tx *sql.Tx) error { return r.InsertActivity(ctx, tx, a) })

	got, err := r.GetActivity(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Audit == nil || got.Audit.Status != domain.AuditApproved || *got.Audit.AuditedBy != "sofia" {
		t.Fatalf("audit round trip: %+v", got.Audit)
	}
	if *got.Evidence != "photo" {
		t.Fatalf("evidence round trip: %v", got.Evidence)
	}

	// clearing the audit persists as NULLs, not empty strings
	got.Audit = nil
	got.Evidence = nil
	inTx(t, r, func(tx *sql.Tx) error { return r.UpdateActivity(ctx, tx, got) })
	got, err = r.GetActivity(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Audit != nil || got.Evidence != nil {
		t.Fatalf("expected cleared audit and evidence, got %+v / %v", got.Audit, got.Evidence)
	}
}

func TestListActivityFilters(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	inTx(t, r, func(tx *sql.Tx) error {
		for _, a := range []domain.Activity{
			sample("a1", "2026-08-29", "P1", domain.StatusPlanned),
			sample("a2", "2026-08-29", "P2", domain.StatusExecuted),
			sample("a3", "2026-08-30", "P1", domain.StatusExecuted),
		} {
			if err := r.InsertActivity(ctx, tx, a); err != nil {
				return err
			}
		}
		return nil
	})

	cases := []struct {
		f    repo.ActivityFilters
		want int
	}{
		{repo.ActivityFilters{}, 3},
		{repo.ActivityFilters{Date: "2026-08-29"}, 2},
		{repo.ActivityFilters{ProcessID: "P1"}, 2},
		{repo.ActivityFilters{Status: "executed"}, 2},
		{repo.ActivityFilters{Date: "2026-08-29", Status: "executed"}, 1},
	}
	for i, c := range cases {
		items, err := r.ListActivities(ctx, c.f)
		if err != nil {
			t.Fatal(err)
		}
		if len(items) != c.want {
			t.Errorf("case %d: got %d activities, want %d", i, len(items), c.want)
		}
	}
}

func TestUpdateMissingActivity(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	tx, err := r.DB.Begin()
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	err = r.UpdateActivity(ctx, tx, sample("missing", "2026-08-29", "P1", domain.StatusPlanned))
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("update missing = %v, want ErrNotFound", err)
	}
	if _, err := r.GetActivity(ctx, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("get missing = %v, want ErrNotFound", err)
	}
}

func TestCatalogCascade(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	inTx(t, r, func(tx *sql.Tx) error {
		if err := r.InsertProcess(ctx, tx, domain.Process{ID: "P1", Name: "Waste"}); err != nil {
			return err
		}
		if err := r.InsertTask(ctx, tx, domain.Task{ID: "T1", ProcessID: "P1", Name: "Collect"}); err != nil {
			return err
		}
		return r.InsertTask(ctx, tx, domain.Task{ID: "T2", ProcessID: "P1", Name: "Sort"})
	})

	var deleted bool
	inTx(t, r, func(tx *sql.Tx) error {
		var err error
		deleted, err = r.DeleteProcess(ctx, tx, "P1")
		return err
	})
	if !deleted {
		t.Fatalf("expected delete to report true")
	}
	tasks, err := r.ListTasks(ctx, "P1")
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Fatalf("tasks survived cascade: %d", len(tasks))
	}

	inTx(t, r, func(tx *sql.Tx) error {
		var err error
		deleted, err = r.DeleteProcess(ctx, tx, "P1")
		return err
	})
	if deleted {
		t.Fatalf("second delete should report false")
	}
}
