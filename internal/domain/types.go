package domain

import (
	"strings"
	"time"
)

// YesNo mirrors the "Yes"/"No" string flags carried on case data.
type YesNo string

const (
	// Yes marks a flag as set.
	Yes YesNo = "Yes"
	// No marks a flag as explicitly unset.
	No YesNo = "No"
)

// IsYes reports whether the flag is set, ignoring case and surrounding whitespace.
func IsYes(value YesNo) bool {
	return strings.EqualFold(strings.TrimSpace(string(value)), string(Yes))
}

// IsNo reports whether the flag is explicitly unset.
func IsNo(value YesNo) bool {
	return strings.EqualFold(strings.TrimSpace(string(value)), string(No))
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
