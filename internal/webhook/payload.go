package webhook

import (
	"fmt"
	"time"

	"github.com/dandantas/vigil/internal/model"
)

// NotificationPayload is the JSON body posted to a job's webhook when its
// status changes.
type NotificationPayload struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
	Details  map[string]interface{} `json:"details"`
}

// FormatStatusPayload builds the webhook payload for one status transition.
func FormatStatusPayload(
	jobID string,
	jobName string,
	from model.JobStatus,
	to model.JobStatus,
	reason string,
	occurredAt time.Time,
	correlationID string,
) NotificationPayload {
	var message string
	switch to {
	case model.StatusLate:
		message = fmt.Sprintf("⚠️ Job '%s' is late: no ping received by its deadline", jobName)
	case model.StatusMissing:
		if reason == "fail-signal" {
			message = fmt.Sprintf("🚨 Job '%s' reported a failure", jobName)
		} else {
			message = fmt.Sprintf("🚨 Job '%s' is missing: grace period expired without a ping", jobName)
		}
	case model.StatusHealthy:
		message = fmt.Sprintf("✅ Job '%s' recovered", jobName)
	default:
		message = fmt.Sprintf("Job '%s' changed status: %s -> %s", jobName, from, to)
	}

	return NotificationPayload{
		Text: message,
		Metadata: map[string]interface{}{
			"service":        "vigil",
			"job_id":         jobID,
			"job_name":       jobName,
			"correlation_id": correlationID,
			"timestamp":      "", // Set by the dispatcher
			"severity":       severityFor(to),
		},
		Details: map[string]interface{}{
			"from":        string(from),
			"to":          string(to),
			"reason":      reason,
			"occurred_at": occurredAt.UTC().Format(time.RFC3339),
		},
	}
}

func severityFor(to model.JobStatus) string {
	switch to {
	case model.StatusMissing:
		return "critical"
	case model.StatusLate:
		return "warning"
	default:
		return "info"
	}
}
