package monitor

import "time"

// Severity ranks an Alert. Resource-ceiling breaches (memory, CPU) are
// critical; rate-based breaches are warnings.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a single threshold breach, keyed by the check that raised it so
// repeated breaches of the same check update the existing Alert instead of
// raising duplicates.
type Alert struct {
	ID       string
	Severity Severity
	Message  string
	RaisedAt time.Time

	Resolved   bool
	ResolvedAt time.Time
}
