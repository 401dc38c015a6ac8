package runs

import "time"

// Run is the ledger record of one orchestration attempt.
type Run struct {
	ID           string         `json:"id"`
	FileName     string         `json:"fileName"`
	TemplateName string         `json:"templateName"`
	State        string         `json:"state"`
	ErrorKind    string         `json:"errorKind,omitempty"`
	ErrorDetail  string         `json:"errorDetail,omitempty"`
	Warnings     []string       `json:"warnings"`
	HTML         string         `json:"html,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	InputKey     string         `json:"inputKey,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
}
