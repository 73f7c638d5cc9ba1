package domain

import (
	"fmt"
	"time"
)

// ProbeOutcome is the uniform result of a web or database probe.
type ProbeOutcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func Success(msg string) ProbeOutcome {
	return ProbeOutcome{Success: true, Message: msg}
}

// Failure turns err into a failed outcome with an "ERROR: " prefixed message.
func Failure(err error) ProbeOutcome {
	if err == nil {
		return Failuref("unknown error")
	}
	return ProbeOutcome{Success: false, Message: "ERROR: " + err.Error()}
}

func Failuref(format string, args ...any) ProbeOutcome {
	return ProbeOutcome{Success: false, Message: "ERROR: " + fmt.Sprintf(format, args...)}
}

// SystemCheckResult is the row produced for one enabled system.
type SystemCheckResult struct {
	DisplayName string       `json:"name"`
	Web         ProbeOutcome `json:"web"`
	DB          ProbeOutcome `json:"db"`
}

// Healthy reports whether both probes succeeded.
func (r SystemCheckResult) Healthy() bool {
	return r.Web.Success && r.DB.Success
}

// Report is the rendered output of one batch.
type Report struct {
	Subject     string              `json:"subject"`
	Recipients  []string            `json:"recipients"`
	GeneratedAt time.Time           `json:"generated_at"`
	HTML        string              `json:"-"`
	Results     []SystemCheckResult `json:"results"`
}
