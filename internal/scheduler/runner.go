package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthreport/internal/config"
	"github.com/hamed0406/healthreport/internal/domain"
	"github.com/hamed0406/healthreport/internal/metrics"
	"github.com/hamed0406/healthreport/internal/notify"
	"github.com/hamed0406/healthreport/internal/probe"
	"github.com/hamed0406/healthreport/internal/report"
	"github.com/hamed0406/healthreport/internal/repo"
)

// Credentials resolves password keys. An absent key and an empty value are
// different things: only the former is a failure.
type Credentials interface {
	Lookup(key string) (string, bool)
}

const (
	probeWeb = "web"
	probeDB  = "db"
)

// Runner drives batches: probe every enabled system, render the report,
// keep it and hand it to the dispatcher.
type Runner struct {
	Logger     *zap.Logger
	Web        probe.WebProbe
	DB         probe.DBProbe
	Systems    []domain.SystemSpec
	Creds      Credentials
	Subject    string
	Recipients []string
	Dispatcher notify.Dispatcher // nil renders and stores without sending
	Reports    repo.ReportStore  // optional
	Metrics    *metrics.Recorder // optional
	Interval   time.Duration
	Now        func() time.Time

	mu sync.Mutex
}

func NewRunner(
	logger *zap.Logger,
	cfg *config.Config,
	creds Credentials,
	web probe.WebProbe,
	db probe.DBProbe,
	dispatcher notify.Dispatcher,
	reports repo.ReportStore,
	rec *metrics.Recorder,
	interval time.Duration,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval < 0 {
		interval = 0
	}
	return &Runner{
		Logger:     logger,
		Web:        web,
		DB:         db,
		Systems:    cfg.Systems,
		Creds:      creds,
		Subject:    cfg.ReportSubject,
		Recipients: cfg.EmailRecipients,
		Dispatcher: dispatcher,
		Reports:    reports,
		Metrics:    rec,
		Interval:   interval,
		Now:        time.Now,
	}
}

// Run starts the loop. It does an immediate batch, then one per tick.
// Stops when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	if r.Interval == 0 {
		// disabled
		r.Logger.Info("runner_disabled")
		return
	}
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	// immediate pass
	r.runBatch(ctx)

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info("runner_stopped")
			return
		case <-t.C:
			r.runBatch(ctx)
		}
	}
}

func (r *Runner) runBatch(ctx context.Context) {
	if _, err := r.Batch(ctx); err != nil {
		r.Logger.Warn("batch_error", zap.Error(err))
	}
}

// Batch runs every configured system once and delivers the resulting report.
// Delivery failures are logged; the report is still returned. Calls are
// serialised so scheduled and on-demand batches never overlap.
func (r *Runner) Batch(ctx context.Context) (*domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	r.Logger.Info("batch_start", zap.Int("systems", len(r.Systems)))

	results := r.RunOnce(ctx, r.Systems, r.Creds)

	rep, err := report.Build(r.Subject, r.Recipients, results, r.now())
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	healthy := 0
	for _, res := range results {
		if res.Healthy() {
			healthy++
		}
	}
	r.Logger.Info("batch_done",
		zap.Int("results", len(results)),
		zap.Int("healthy", healthy),
		zap.Duration("elapsed", time.Since(start)),
	)

	if r.Reports != nil {
		if err := r.Reports.Save(ctx, rep); err != nil {
			r.Logger.Warn("report_save_error", zap.Error(err))
		}
	}
	r.dispatch(ctx, rep)
	return rep, nil
}

func (r *Runner) dispatch(ctx context.Context, rep *domain.Report) {
	if r.Dispatcher == nil {
		r.Logger.Info("dispatch_skipped")
		return
	}
	if err := r.Dispatcher.Dispatch(ctx, rep); err != nil {
		r.Logger.Error("dispatch_failed", zap.Error(err))
		return
	}
	r.Logger.Info("dispatch_ok", zap.Int("recipients", len(rep.Recipients)))
}

// RunOnce probes each enabled system in order and returns one result per
// enabled system. A failing or panicking probe only degrades its own cell.
func (r *Runner) RunOnce(ctx context.Context, systems []domain.SystemSpec, creds Credentials) []domain.SystemCheckResult {
	results := make([]domain.SystemCheckResult, 0, len(systems))
	for _, s := range systems {
		if !s.Enabled {
			r.Logger.Debug("system_skipped", zap.String("system", s.Name))
			continue
		}
		r.Logger.Info("system_start", zap.String("system", s.Name))

		web := r.checkWeb(ctx, s, creds)
		db := r.checkDB(ctx, s, creds)
		results = append(results, domain.SystemCheckResult{
			DisplayName: s.Description,
			Web:         web,
			DB:          db,
		})
	}
	return results
}

func (r *Runner) checkWeb(ctx context.Context, s domain.SystemSpec, creds Credentials) domain.ProbeOutcome {
	key := s.WebPasswordKey()
	password, ok := lookup(creds, key)
	if !ok {
		return r.missing(ctx, s.Name, probeWeb, key)
	}
	return r.invoke(ctx, s.Name, probeWeb, func(ctx context.Context) domain.ProbeOutcome {
		return r.Web.CheckWeb(ctx, probe.WebRequest{
			URL:       s.Web.URL,
			User:      s.Web.User,
			Password:  password,
			Selectors: s.Web.Selectors,
			Headless:  true,
		})
	})
}

func (r *Runner) checkDB(ctx context.Context, s domain.SystemSpec, creds Credentials) domain.ProbeOutcome {
	key := s.DBPasswordKey()
	password, ok := lookup(creds, key)
	if !ok {
		return r.missing(ctx, s.Name, probeDB, key)
	}
	return r.invoke(ctx, s.Name, probeDB, func(ctx context.Context) domain.ProbeOutcome {
		return r.DB.CheckDB(ctx, probe.DBRequest{
			Kind:        s.Database.Kind,
			Host:        s.Database.Host,
			Port:        s.Database.Port,
			ServiceName: s.Database.ServiceName,
			User:        s.Database.User,
			Password:    password,
		})
	})
}

func lookup(creds Credentials, key string) (string, bool) {
	if creds == nil {
		return "", false
	}
	return creds.Lookup(key)
}

func (r *Runner) missing(ctx context.Context, system, name, key string) domain.ProbeOutcome {
	out := domain.Failuref("missing credential %s", key)
	r.observe(ctx, system, name, out, 0)
	return out
}

// invoke runs fn and converts a panic into a failed outcome.
func (r *Runner) invoke(ctx context.Context, system, name string, fn func(context.Context) domain.ProbeOutcome) (out domain.ProbeOutcome) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			out = domain.Failuref("%v", p)
		}
		r.observe(ctx, system, name, out, time.Since(start))
	}()
	return fn(ctx)
}

func (r *Runner) observe(ctx context.Context, system, name string, out domain.ProbeOutcome, d time.Duration) {
	r.Metrics.RecordProbe(ctx, system, name, out.Success, d)
	r.Logger.Info("probe_result",
		zap.String("system", system),
		zap.String("probe", name),
		zap.Bool("success", out.Success),
		zap.String("message", out.Message),
		zap.Duration("elapsed", d),
	)
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
