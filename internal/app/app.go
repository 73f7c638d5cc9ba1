// Package app loads a batch's inputs and assembles the runner shared by the
// command-line tools and the report service.
package app

import (
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/healthreport/internal/config"
	"github.com/hamed0406/healthreport/internal/domain"
	"github.com/hamed0406/healthreport/internal/metrics"
	"github.com/hamed0406/healthreport/internal/notify"
	"github.com/hamed0406/healthreport/internal/probe"
	"github.com/hamed0406/healthreport/internal/repo"
	"github.com/hamed0406/healthreport/internal/scheduler"
	"github.com/hamed0406/healthreport/internal/secrets"
)

// Inputs are the two sources a batch cannot start without.
type Inputs struct {
	Config  *config.Config
	Secrets *secrets.Store
}

// Load reads the YAML configuration and the secrets file. Either failing is a
// *config.Error. With fromEnv, environment variables override the secrets
// the configuration needs.
func Load(configPath, secretsPath string, fromEnv bool) (*Inputs, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	store, err := secrets.Load(secretsPath)
	if err != nil {
		return nil, &config.Error{Path: secretsPath, Err: err}
	}
	if fromEnv {
		keys := secrets.RequiredKeys(cfg.Systems, cfg.Dispatch == config.DispatchSMTP)
		store = store.Overlay(keys, os.LookupEnv)
	}
	return &Inputs{Config: cfg, Secrets: store}, nil
}

// Options carry the optional collaborators of a runner.
type Options struct {
	Reports  repo.ReportStore
	Metrics  *metrics.Recorder
	Interval time.Duration
	DryRun   bool // render and store only
}

// NewRunner builds the probes and dispatcher described by in.Config.
func NewRunner(logger *zap.Logger, in *Inputs, opts Options) (*scheduler.Runner, error) {
	cfg := in.Config
	t := cfg.Timeouts

	web := probe.NewHTMLWebChecker(logger, probe.WebTimeouts{
		Navigation:       t.Navigation,
		SuccessIndicator: t.SuccessIndicator,
		ReturnIndicator:  t.ReturnIndicator,
		Poll:             t.PollInterval,
	})
	db := probe.NewSQLChecker(logger, t.DBQuery)

	var dispatcher notify.Dispatcher
	if !opts.DryRun {
		smtpPassword, _ := in.Secrets.Lookup(domain.SMTPPasswordKey)
		d, err := notify.New(cfg, smtpPassword, logger)
		if err != nil {
			return nil, err
		}
		dispatcher = d
	}

	return scheduler.NewRunner(logger, cfg, in.Secrets, web, db, dispatcher, opts.Reports, opts.Metrics, opts.Interval), nil
}
