package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationAttempt is one webhook delivery attempt.
type NotificationAttempt struct {
	AttemptNumber int       `json:"attempt_number" bson:"attempt_number"`
	Timestamp     time.Time `json:"timestamp" bson:"timestamp"`
	StatusCode    int       `json:"status_code,omitempty" bson:"status_code,omitempty"`
	ResponseBody  string    `json:"response_body,omitempty" bson:"response_body,omitempty"`
	Error         string    `json:"error,omitempty" bson:"error,omitempty"`
	DurationMs    int64     `json:"duration_ms" bson:"duration_ms"`
}

// NotificationLog records the delivery of one status-transition alert.
type NotificationLog struct {
	ID            primitive.ObjectID    `json:"id" bson:"_id,omitempty"`
	JobID         primitive.ObjectID    `json:"job_id" bson:"job_id"`
	JobName       string                `json:"job_name" bson:"job_name"`
	CorrelationID string                `json:"correlation_id" bson:"correlation_id"`
	WebhookURL    string                `json:"webhook_url" bson:"webhook_url"`
	Transition    string                `json:"transition" bson:"transition"` // e.g. "late->missing"
	Message       string                `json:"message" bson:"message"`
	Attempts      []NotificationAttempt `json:"attempts" bson:"attempts"`
	FinalStatus   string                `json:"final_status" bson:"final_status"` // "delivered", "failed", "retrying"
	CreatedAt     time.Time             `json:"created_at" bson:"created_at"`
	CompletedAt   time.Time             `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// NotificationSummary is the list read model for notification logs.
type NotificationSummary struct {
	ID            string `json:"id"`
	JobID         string `json:"job_id"`
	JobName       string `json:"job_name"`
	CorrelationID string `json:"correlation_id"`
	WebhookURL    string `json:"webhook_url"`
	Transition    string `json:"transition"`
	FinalStatus   string `json:"final_status"`
	AttemptsCount int    `json:"attempts_count"`
	CreatedAt     string `json:"created_at"`
	CompletedAt   string `json:"completed_at,omitempty"`
}

// ToSummary converts a NotificationLog to its list read model.
func (n *NotificationLog) ToSummary() NotificationSummary {
	s := NotificationSummary{
		ID:            n.ID.Hex(),
		JobID:         n.JobID.Hex(),
		JobName:       n.JobName,
		CorrelationID: n.CorrelationID,
		WebhookURL:    n.WebhookURL,
		Transition:    n.Transition,
		FinalStatus:   n.FinalStatus,
		AttemptsCount: len(n.Attempts),
	}
	if !n.CreatedAt.IsZero() {
		s.CreatedAt = n.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !n.CompletedAt.IsZero() {
		s.CompletedAt = n.CompletedAt.UTC().Format(time.RFC3339)
	}
	return s
}
