package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// RetryConfig controls webhook delivery retries.
type RetryConfig struct {
	MaxAttempts    int     `json:"max_attempts" bson:"max_attempts"`
	InitialDelayMs int     `json:"initial_delay_ms" bson:"initial_delay_ms"`
	MaxDelayMs     int     `json:"max_delay_ms" bson:"max_delay_ms"`
	Multiplier     float64 `json:"multiplier" bson:"multiplier"`
}

// SetDefaults fills zero-valued fields.
func (rc *RetryConfig) SetDefaults() {
	if rc.MaxAttempts == 0 {
		rc.MaxAttempts = 3
	}
	if rc.InitialDelayMs == 0 {
		rc.InitialDelayMs = 1000
	}
	if rc.MaxDelayMs == 0 {
		rc.MaxDelayMs = 30000
	}
	if rc.Multiplier == 0 {
		rc.Multiplier = 2.0
	}
}

// Webhook is where status-transition notifications for a job are delivered.
type Webhook struct {
	URL         string            `json:"url" bson:"url"`
	Method      string            `json:"method,omitempty" bson:"method,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" bson:"headers,omitempty"`
	RetryConfig RetryConfig       `json:"retry_config,omitempty" bson:"retry_config,omitempty"`
}

// Validate validates the webhook target and fills defaults.
func (w *Webhook) Validate() error {
	if w.URL == "" {
		return errors.New("webhook URL is required")
	}

	parsed, err := url.Parse(w.URL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("webhook URL must start with http:// or https://")
	}

	if w.Method == "" {
		w.Method = "POST"
	}
	w.Method = strings.ToUpper(w.Method)

	w.RetryConfig.SetDefaults()
	return nil
}
