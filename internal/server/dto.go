package server

import (
	"math"

	"enviroplan/internal/domain"
	"enviroplan/internal/report"
)

// CreateActivityRequest plans a new activity.
type CreateActivityRequest struct {
	Date              string `json:"date" example:"2026-08-29"`
	ProcessID         string `json:"process_id" example:"P1"`
	TaskID            string `json:"task_id" example:"T1"`
	Resources         string `json:"resources,omitempty"`
	PersonCount       int    `json:"person_count,omitempty" minimum:"0"`
	AssignedPersonnel string `json:"assigned_personnel,omitempty"`
}

// SetStatusRequest changes the execution status.
type SetStatusRequest struct {
	Status string `json:"status" enum:"planned,executed,cancelled,rescheduled"`
}

// EvidenceRequest attaches an evidence payload (base64 image or URL).
type EvidenceRequest struct {
	Payload string `json:"payload"`
}

// AuditRequest records a supervisory decision.
type AuditRequest struct {
	Status  string `json:"status" enum:"pending,approved,flagged"`
	Comment string `json:"comment,omitempty"`
}

// ActivityResponse is the API activity model.
type ActivityResponse struct {
	ID                string        `json:"id"`
	Date              string        `json:"date"`
	ProcessID         string        `json:"process_id"`
	TaskID            string        `json:"task_id"`
	Resources         string        `json:"resources,omitempty"`
	PersonCount       int           `json:"person_count"`
	AssignedPersonnel string        `json:"assigned_personnel,omitempty"`
	Status            string        `json:"status"`
	Evidence          *string       `json:"evidence,omitempty"`
	Audit             *domain.Audit `json:"audit,omitempty"`
	CreatedBy         string        `json:"created_by"`
	CreatedAt         string        `json:"created_at"`
	UpdatedAt         string        `json:"updated_at"`
}

func activityResponse(a domain.Activity) ActivityResponse {
	return ActivityResponse{
		ID:                a.ID,
		Date:              a.Date,
		ProcessID:         a.ProcessID,
		TaskID:            a.TaskID,
		Resources:         a.Resources,
		PersonCount:       a.PersonCount,
		AssignedPersonnel: a.AssignedPersonnel,
		Status:            string(a.Status),
		Evidence:          a.Evidence,
		Audit:             a.Audit,
		CreatedBy:         a.CreatedBy,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func mapActivities(items []domain.Activity) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(items))
	for _, a := range items {
		out = append(out, activityResponse(a))
	}
	return out
}

// ProcessResponse is a catalog process with its tasks.
type ProcessResponse struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Tasks []domain.Task `json:"tasks"`
}

// CreateProcessRequest adds a catalog process.
type CreateProcessRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// RenameProcessRequest renames a process.
type RenameProcessRequest struct {
	Name string `json:"name"`
}

// CreateTaskRequest adds a task to a process.
type CreateTaskRequest struct {
	Name string `json:"name"`
}

// ImportCatalogRequest bulk loads "process,task" lines.
type ImportCatalogRequest struct {
	Text string `json:"text"`
}

// ImportCatalogResponse reports how many rows were created.
type ImportCatalogResponse struct {
	Processes int `json:"processes"`
	Tasks     int `json:"tasks"`
}

// ReportResponse is the dashboard aggregate. Compliance is null when
// there are no activities, since JSON has no NaN.
type ReportResponse struct {
	Total      int                  `json:"total"`
	Executed   int                  `json:"executed"`
	Compliance *float64             `json:"compliance"`
	PerProcess []report.ProcessRate `json:"per_process"`
	Summary    string               `json:"summary,omitempty"`
}

func reportResponse(stats report.Stats, summary string) ReportResponse {
	resp := ReportResponse{
		Total:      stats.Total,
		Executed:   stats.Executed,
		PerProcess: stats.PerProcess,
		Summary:    summary,
	}
	if !math.IsNaN(stats.Compliance) {
		c := stats.Compliance
		resp.Compliance = &c
	}
	return resp
}

// NotificationResponse is one derived notification row.
type NotificationResponse struct {
	ID           string `json:"id"`
	ActivityID   string `json:"activity_id"`
	ActivityName string `json:"activity_name"`
	TS           string `json:"ts"`
	Status       string `json:"status"`
	Read         bool   `json:"read"`
	User         string `json:"user"`
}

func mapNotifications(items []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, NotificationResponse{
			ID:           n.ID,
			ActivityID:   n.ActivityID,
			ActivityName: n.ActivityName,
			TS:           n.TS,
			Status:       string(n.Status),
			Read:         n.Read,
			User:         n.User,
		})
	}
	return out
}
