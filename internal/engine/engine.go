package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"enviroplan/internal/authz"
	"enviroplan/internal/config"
	"enviroplan/internal/domain"
	"enviroplan/internal/events"
	"enviroplan/internal/metrics"
	"enviroplan/internal/repo"
)

// Actor is the authenticated user on whose behalf an operation runs.
type Actor struct {
	Name string
	Role authz.Role
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Logger *zap.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, logger *zap.Logger) Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Logger: logger,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

// ActivityCreateOptions are parameters for planning an activity.
type ActivityCreateOptions struct {
	ID                string
	Date              string
	ProcessID         string
	TaskID            string
	Resources         string
	PersonCount       int
	AssignedPersonnel string
}

// CreateActivity validates and stores a new planned activity. Date,
// process and task are required and the task must belong to the
// process; validation failures leave no partial state.
func (e Engine) CreateActivity(ctx context.Context, opts ActivityCreateOptions, actor Actor) (domain.Activity, error) {
	if err := authz.Require(actor.Role, authz.ActionActivityCreate); err != nil {
		return domain.Activity{}, err
	}
	if opts.Date == "" {
		return domain.Activity{}, errors.New("date is required")
	}
	if opts.ProcessID == "" {
		return domain.Activity{}, errors.New("process is required")
	}
	if opts.TaskID == "" {
		return domain.Activity{}, errors.New("task is required")
	}
	if _, err := e.Repo.GetProcess(ctx, opts.ProcessID); err != nil {
		return domain.Activity{}, fmt.Errorf("process %s: %w", opts.ProcessID, err)
	}
	task, err := e.Repo.GetTask(ctx, opts.TaskID)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("task %s: %w", opts.TaskID, err)
	}
	if task.ProcessID != opts.ProcessID {
		return domain.Activity{}, fmt.Errorf("task %s does not belong to process %s", opts.TaskID, opts.ProcessID)
	}
	if opts.PersonCount < 1 {
		opts.PersonCount = 1
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.nowString()
	a := domain.Activity{
		ID:                id,
		Date:              opts.Date,
		ProcessID:         opts.ProcessID,
		TaskID:            opts.TaskID,
		Resources:         opts.Resources,
		PersonCount:       opts.PersonCount,
		AssignedPersonnel: opts.AssignedPersonnel,
		Status:            domain.StatusPlanned,
		CreatedBy:         actor.Name,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Activity{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertActivity(ctx, tx, a); err != nil {
		return domain.Activity{}, fmt.Errorf("insert activity: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "activity.created", "activity", a.ID, actor.Name, events.EventPayload{
		"date": a.Date, "process_id": a.ProcessID, "task_id": a.TaskID,
	}); err != nil {
		return domain.Activity{}, err
	}
	if err := e.enqueueSync(ctx, tx, a); err != nil {
		return domain.Activity{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Activity{}, err
	}
	metrics.ActivitiesCreated.Inc()
	return a, nil
}

// SetStatus re-sets the execution status. Any status can follow any
// other; there is no terminal lock. Cancelling or rescheduling also
// writes a notification row.
func (e Engine) SetStatus(ctx context.Context, id string, status domain.ActivityStatus, actor Actor) (domain.Activity, error) {
	if err := authz.Require(actor.Role, authz.ActionActivityStatus); err != nil {
		return domain.Activity{}, err
	}
	if !domain.ValidActivityStatus(status) {
		return domain.Activity{}, fmt.Errorf("invalid status %q", status)
	}
	a, err := e.Repo.GetActivity(ctx, id)
	if err != nil {
		return domain.Activity{}, err
	}
	from := a.Status
	a.Status = status
	a.UpdatedAt = e.nowString()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateActivity(ctx, tx, a); err != nil {
		return a, err
	}
	if status == domain.StatusCancelled || status == domain.StatusRescheduled {
		name, _ := e.activityName(ctx, a)
		n := domain.Notification{
			ID:           uuid.New().String(),
			ActivityID:   a.ID,
			ActivityName: name,
			TS:           a.UpdatedAt,
			Status:       status,
			User:         actor.Name,
		}
		if err := e.Repo.InsertNotification(ctx, tx, n); err != nil {
			return a, fmt.Errorf("insert notification: %w", err)
		}
	}
	if err := e.Events.Append(ctx, tx, "activity.status", "activity", a.ID, actor.Name, events.EventPayload{
		"from": string(from), "to": string(status),
	}); err != nil {
		return a, err
	}
	if err := e.enqueueSync(ctx, tx, a); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	metrics.StatusChanges.WithLabelValues(string(status)).Inc()
	return a, nil
}

// RecordEvidence stores an evidence payload against the activity. This
// is the one coupled transition: it forces status to executed and
// resets the audit sub-record to pending, discarding any earlier
// decision, comment, and auditor stamp.
func (e Engine) RecordEvidence(ctx context.Context, id, payload string, actor Actor) (domain.Activity, error) {
	if err := authz.Require(actor.Role, authz.ActionEvidenceUpload); err != nil {
		return domain.Activity{}, err
	}
	if payload == "" {
		return domain.Activity{}, errors.New("evidence payload is required")
	}
	a, err := e.Repo.GetActivity(ctx, id)
	if err != nil {
		return domain.Activity{}, err
	}
	a.Evidence = &payload
	a.Status = domain.StatusExecuted
	a.Audit = &domain.Audit{Status: domain.AuditPending}
	a.UpdatedAt = e.nowString()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateActivity(ctx, tx, a); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, "activity.evidence", "activity", a.ID, actor.Name, events.EventPayload{
		"bytes": len(payload),
	}); err != nil {
		return a, err
	}
	if err := e.enqueueSync(ctx, tx, a); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	metrics.EvidenceUploads.Inc()
	return a, nil
}

// SubmitAudit records a supervisory decision on uploaded evidence.
func (e Engine) SubmitAudit(ctx context.Context, id string, status domain.AuditStatus, comment string, actor Actor) (domain.Activity, error) {
	if err := authz.Require(actor.Role, authz.ActionAuditSubmit); err != nil {
		return domain.Activity{}, err
	}
	if !domain.ValidAuditStatus(status) {
		return domain.Activity{}, fmt.Errorf("invalid audit status %q", status)
	}
	a, err := e.Repo.GetActivity(ctx, id)
	if err != nil {
		return domain.Activity{}, err
	}
	if a.Audit == nil {
		return domain.Activity{}, errors.New("no evidence uploaded; nothing to audit")
	}
	now := e.nowString()
	auditor := actor.Name
	a.Audit = &domain.Audit{
		Status:    status,
		Comment:   comment,
		AuditedBy: &auditor,
		AuditedAt: &now,
	}
	a.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateActivity(ctx, tx, a); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, "activity.audited", "activity", a.ID, actor.Name, events.EventPayload{
		"status": string(status), "comment": comment,
	}); err != nil {
		return a, err
	}
	if err := e.enqueueSync(ctx, tx, a); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	metrics.AuditDecisions.WithLabelValues(string(status)).Inc()
	return a, nil
}

// DeleteActivity removes an activity. A missing id is a tolerated
// no-op, not an error.
func (e Engine) DeleteActivity(ctx context.Context, id string, actor Actor) error {
	if err := authz.Require(actor.Role, authz.ActionActivityDelete); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	deleted, err := e.Repo.DeleteActivity(ctx, tx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}
	if err := e.Events.Append(ctx, tx, "activity.deleted", "activity", id, actor.Name, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) activityName(ctx context.Context, a domain.Activity) (string, error) {
	t, err := e.Repo.GetTask(ctx, a.TaskID)
	if err != nil {
		// Task may have been removed from the catalog; fall back to the id.
		return a.TaskID, err
	}
	return t.Name, nil
}

// enqueueSync queues the full activity row for cloud push when remote
// persistence is configured. The local row stays authoritative; the
// push is best-effort.
func (e Engine) enqueueSync(ctx context.Context, tx *sql.Tx, a domain.Activity) error {
	if e.Config == nil || !e.Config.CloudEnabled() {
		return nil
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal activity for sync: %w", err)
	}
	return e.Repo.EnqueueOutbox(ctx, tx, "activities", a.ID, string(payload))
}

// --- catalog ---

// AddProcess creates a catalog process. ID is generated when empty.
func (e Engine) AddProcess(ctx context.Context, id, name string, actor Actor) (domain.Process, error) {
	if err := authz.Require(actor.Role, authz.ActionCatalogEdit); err != nil {
		return domain.Process{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Process{}, errors.New("process name is required")
	}
	if id == "" {
		id = "P-" + uuid.New().String()[:8]
	}
	p := domain.Process{ID: id, Name: name}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProcess(ctx, tx, p); err != nil {
		return p, fmt.Errorf("insert process: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "catalog.process.added", "process", p.ID, actor.Name, events.EventPayload{"name": p.Name}); err != nil {
		return p, err
	}
	return p, tx.Commit()
}

// RenameProcess updates a process name in place.
func (e Engine) RenameProcess(ctx context.Context, id, name string, actor Actor) (domain.Process, error) {
	if err := authz.Require(actor.Role, authz.ActionCatalogEdit); err != nil {
		return domain.Process{}, err
	}
	if _, err := e.Repo.GetProcess(ctx, id); err != nil {
		return domain.Process{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Process{}, errors.New("process name is required")
	}
	p := domain.Process{ID: id, Name: name}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertProcess(ctx, tx, p); err != nil {
		return p, err
	}
	if err := e.Events.Append(ctx, tx, "catalog.process.renamed", "process", p.ID, actor.Name, events.EventPayload{"name": p.Name}); err != nil {
		return p, err
	}
	return p, tx.Commit()
}

// RemoveProcess deletes a process and cascades to its tasks. Activities
// referencing those tasks are left in place with dangling references.
func (e Engine) RemoveProcess(ctx context.Context, id string, actor Actor) error {
	if err := authz.Require(actor.Role, authz.ActionCatalogEdit); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	deleted, err := e.Repo.DeleteProcess(ctx, tx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}
	if err := e.Events.Append(ctx, tx, "catalog.process.removed", "process", id, actor.Name, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// AddTask creates a task under an existing process.
func (e Engine) AddTask(ctx context.Context, processID, name string, actor Actor) (domain.Task, error) {
	if err := authz.Require(actor.Role, authz.ActionCatalogEdit); err != nil {
		return domain.Task{}, err
	}
	if _, err := e.Repo.GetProcess(ctx, processID); err != nil {
		return domain.Task{}, fmt.Errorf("process %s: %w", processID, err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Task{}, errors.New("task name is required")
	}
	t := domain.Task{ID: "T-" + uuid.New().String()[:8], ProcessID: processID, Name: name}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return t, fmt.Errorf("insert task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "catalog.task.added", "task", t.ID, actor.Name, events.EventPayload{"name": t.Name, "process_id": processID}); err != nil {
		return t, err
	}
	return t, tx.Commit()
}

// RemoveTask deletes a single task; missing ids are tolerated.
func (e Engine) RemoveTask(ctx context.Context, id string, actor Actor) error {
	if err := authz.Require(actor.Role, authz.ActionCatalogEdit); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	deleted, err := e.Repo.DeleteTask(ctx, tx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}
	if err := e.Events.Append(ctx, tx, "catalog.task.removed", "task", id, actor.Name, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// BulkImportCatalog ingests "process,task" lines (comma or tab
// separated). Process names match existing entries case-insensitively;
// unseen processes are created on the fly.
func (e Engine) BulkImportCatalog(ctx context.Context, text string, actor Actor) (processes, tasks int, err error) {
	if err := authz.Require(actor.Role, authz.ActionCatalogEdit); err != nil {
		return 0, 0, err
	}
	existing, err := e.Repo.ListProcesses(ctx)
	if err != nil {
		return 0, 0, err
	}
	byName := map[string]domain.Process{}
	for _, p := range existing {
		byName[strings.ToLower(p.Name)] = p
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	for _, line := range strings.Split(text, "\n") {
		parts := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == '\t' })
		if len(parts) < 2 {
			continue
		}
		procName := strings.TrimSpace(parts[0])
		taskName := strings.TrimSpace(parts[1])
		if procName == "" || taskName == "" {
			continue
		}
		p, ok := byName[strings.ToLower(procName)]
		if !ok {
			p = domain.Process{ID: "P-" + uuid.New().String()[:8], Name: procName}
			if err := e.Repo.InsertProcess(ctx, tx, p); err != nil {
				return 0, 0, fmt.Errorf("insert process %s: %w", procName, err)
			}
			byName[strings.ToLower(procName)] = p
			processes++
		}
		t := domain.Task{ID: "T-" + uuid.New().String()[:8], ProcessID: p.ID, Name: taskName}
		if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
			return 0, 0, fmt.Errorf("insert task %s: %w", taskName, err)
		}
		tasks++
	}
	if err := e.Events.Append(ctx, tx, "catalog.imported", "catalog", "", actor.Name, events.EventPayload{
		"processes": processes, "tasks": tasks,
	}); err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	e.Logger.Info("catalog imported", zap.Int("processes", processes), zap.Int("tasks", tasks))
	return processes, tasks, nil
}

// SeedCatalog loads the config's default catalog when the tables are
// empty. Runs at startup, outside any user session.
func (e Engine) SeedCatalog(ctx context.Context) error {
	if e.Config == nil {
		return errors.New("config not loaded")
	}
	nProcs, nTasks, err := e.Repo.CatalogCounts(ctx)
	if err != nil {
		return err
	}
	if nProcs > 0 || nTasks > 0 {
		return nil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	taskSeq := 0
	for _, cp := range e.Config.Catalog.Processes {
		if err := e.Repo.InsertProcess(ctx, tx, domain.Process{ID: cp.ID, Name: cp.Name}); err != nil {
			return fmt.Errorf("seed process %s: %w", cp.ID, err)
		}
		for _, name := range cp.Tasks {
			taskSeq++
			t := domain.Task{ID: fmt.Sprintf("T%d", taskSeq), ProcessID: cp.ID, Name: name}
			if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
				return fmt.Errorf("seed task %s: %w", name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.Logger.Info("default catalog seeded", zap.Int("processes", len(e.Config.Catalog.Processes)), zap.Int("tasks", taskSeq))
	return nil
}
