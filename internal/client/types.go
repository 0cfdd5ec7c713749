// Package client provides the HTTP client for the demo server's
// request/response endpoints and builds the URLs of its live feeds.
// Types mirror the server's wire format without importing server packages.
package client

import "github.com/realtime-sync/syncdemo/internal/livesync"

// JobRequest is the body of POST /jobs.
type JobRequest struct {
	Items []string `json:"items"`
}

// JobCreated is the reply to POST /jobs.
type JobCreated struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// JobList is the reply to GET /jobs, keyed by job id.
type JobList struct {
	Jobs map[string]livesync.StatusUpdate `json:"jobs"`
}

// Weather is the weather part of the dashboard.
type Weather struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Condition   string  `json:"condition"`
}

// News is the headlines part of the dashboard.
type News struct {
	Headlines []string `json:"headlines"`
}

// Dashboard is the reply to GET /dashboard.
type Dashboard struct {
	Weather   Weather            `json:"weather"`
	News      News               `json:"news"`
	Stocks    map[string]float64 `json:"stocks"`
	Crypto    map[string]float64 `json:"crypto"`
	Timestamp string             `json:"timestamp"`
}

// ErrorResponse is the body the server sends with a 4xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
