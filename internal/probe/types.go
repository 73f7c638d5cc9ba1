package probe

import (
	"context"

	"github.com/hamed0406/healthreport/internal/domain"
)

// WebRequest describes one login/logout round trip against a web UI.
type WebRequest struct {
	URL       string
	User      string
	Password  string
	Selectors domain.SelectorSet
	Headless  bool
}

// WebProbe checks a web UI. Implementations always return an outcome and
// must release their session before returning.
type WebProbe interface {
	CheckWeb(ctx context.Context, req WebRequest) domain.ProbeOutcome
}

// DBRequest holds the connection parameters for a task-queue count.
type DBRequest struct {
	Kind        string
	Host        string
	Port        int
	ServiceName string
	User        string
	Password    string
}

// DBProbe counts pending tasks in a database. Same contract as WebProbe.
type DBProbe interface {
	CheckDB(ctx context.Context, req DBRequest) domain.ProbeOutcome
}
