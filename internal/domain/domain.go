package domain

// ActivityStatus is the execution state of a planned activity.
type ActivityStatus string

const (
	StatusPlanned     ActivityStatus = "planned"
	StatusExecuted    ActivityStatus = "executed"
	StatusCancelled   ActivityStatus = "cancelled"
	StatusRescheduled ActivityStatus = "rescheduled"
)

// ActivityStatuses lists every valid execution status.
var ActivityStatuses = []ActivityStatus{StatusPlanned, StatusExecuted, StatusCancelled, StatusRescheduled}

// ValidActivityStatus reports whether s is a known execution status.
func ValidActivityStatus(s ActivityStatus) bool {
	switch s {
	case StatusPlanned, StatusExecuted, StatusCancelled, StatusRescheduled:
		return true
	}
	return false
}

// AuditStatus is the supervisory review state of uploaded evidence.
type AuditStatus string

const (
	AuditPending  AuditStatus = "pending"
	AuditApproved AuditStatus = "approved"
	AuditFlagged  AuditStatus = "flagged"
)

// ValidAuditStatus reports whether s is a known audit status.
func ValidAuditStatus(s AuditStatus) bool {
	switch s {
	case AuditPending, AuditApproved, AuditFlagged:
		return true
	}
	return false
}

// Process is a top-level operational category, e.g. waste management.
type Process struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Task is a specific action within a process.
type Task struct {
	ID        string `json:"id"`
	ProcessID string `json:"process_id"`
	Name      string `json:"name"`
}

// Audit is the supervisory review attached to an activity's evidence.
// It lives independently of the execution status and is overwritten to
// pending whenever new evidence is uploaded.
type Audit struct {
	Status    AuditStatus `json:"status" enum:"pending,approved,flagged"`
	Comment   string      `json:"comment,omitempty"`
	AuditedBy *string     `json:"audited_by,omitempty"`
	AuditedAt *string     `json:"audited_at,omitempty" format:"date-time"`
}

// Activity is one planned or executed unit of field work tied to a
// process and task from the catalog.
type Activity struct {
	ID                string         `json:"id"`
	Date              string         `json:"date"`
	ProcessID         string         `json:"process_id"`
	TaskID            string         `json:"task_id"`
	Resources         string         `json:"resources,omitempty"`
	PersonCount       int            `json:"person_count"`
	AssignedPersonnel string         `json:"assigned_personnel,omitempty"`
	Status            ActivityStatus `json:"status" enum:"planned,executed,cancelled,rescheduled"`
	Evidence          *string        `json:"evidence,omitempty"`
	Audit             *Audit         `json:"audit,omitempty"`
	CreatedBy         string         `json:"created_by"`
	CreatedAt         string         `json:"created_at" format:"date-time"`
	UpdatedAt         string         `json:"updated_at" format:"date-time"`
}

// User is the session identity; never persisted beyond the session.
type User struct {
	Username      string `json:"username"`
	Role          string `json:"role"`
	Authenticated bool   `json:"authenticated"`
}

// Notification is a derived read-model row, written when an activity is
// cancelled or rescheduled. It is not authoritative.
type Notification struct {
	ID           string         `json:"id"`
	ActivityID   string         `json:"activity_id"`
	ActivityName string         `json:"activity_name"`
	TS           string         `json:"ts" format:"date-time"`
	Status       ActivityStatus `json:"status"`
	Read         bool           `json:"read"`
	User         string         `json:"user"`
}

// Event is one row of the append-only change log.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
