package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/healthreport/internal/domain"
)

const (
	DispatchSMTP  = "smtp"
	DispatchDraft = "draft"

	DefaultSubject = "Reporte Operativo de Sistemas"
)

// Config is the YAML document describing what to check and where to send the report.
type Config struct {
	Systems         []domain.SystemSpec `yaml:"systems_to_check"`
	SMTPServer      string              `yaml:"smtp_server"`
	SMTPPort        int                 `yaml:"smtp_port"`
	SMTPUser        string              `yaml:"smtp_user"`
	EmailRecipients []string            `yaml:"email_recipients"`
	ReportSubject   string              `yaml:"report_subject"`
	Dispatch        string              `yaml:"dispatch"`
	DraftDir        string              `yaml:"draft_dir"`
	Timeouts        Timeouts            `yaml:"timeouts"`
}

// Timeouts bound every blocking step of a batch.
type Timeouts struct {
	Navigation       time.Duration `yaml:"navigation"`
	SuccessIndicator time.Duration `yaml:"success_indicator"`
	ReturnIndicator  time.Duration `yaml:"return_indicator"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	DBQuery          time.Duration `yaml:"db_query"`
	SMTPDial         time.Duration `yaml:"smtp_dial"`
	SMTPSend         time.Duration `yaml:"smtp_send"` // whole SMTP session after dialing
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigation:       20 * time.Second,
		SuccessIndicator: 20 * time.Second,
		ReturnIndicator:  10 * time.Second,
		PollInterval:     time.Second,
		DBQuery:          30 * time.Second,
		SMTPDial:         15 * time.Second,
		SMTPSend:         time.Minute,
	}
}

// Error reports a configuration or secrets source that is missing or invalid.
// A run cannot start with one.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Load reads, defaults and validates the YAML document at path.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("read: %w", err)}
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	return cfg, nil
}

// Parse decodes and validates a YAML document.
func Parse(content []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ReportSubject == "" {
		c.ReportSubject = DefaultSubject
	}
	c.Dispatch = NormalizeDispatch(c.Dispatch)
	if c.Dispatch == "" {
		c.Dispatch = DispatchDraft
	}
	if c.DraftDir == "" {
		c.DraftDir = os.TempDir()
	}

	def := DefaultTimeouts()
	t := &c.Timeouts
	if t.Navigation <= 0 {
		t.Navigation = def.Navigation
	}
	if t.SuccessIndicator <= 0 {
		t.SuccessIndicator = def.SuccessIndicator
	}
	if t.ReturnIndicator <= 0 {
		t.ReturnIndicator = def.ReturnIndicator
	}
	if t.PollInterval <= 0 {
		t.PollInterval = def.PollInterval
	}
	if t.DBQuery <= 0 {
		t.DBQuery = def.DBQuery
	}
	if t.SMTPDial <= 0 {
		t.SMTPDial = def.SMTPDial
	}
	if t.SMTPSend <= 0 {
		t.SMTPSend = def.SMTPSend
	}
}

// Validate returns every problem found, combined into one error.
func (c *Config) Validate() error {
	var errs error
	seen := make(map[string]bool, len(c.Systems))
	for i, s := range c.Systems {
		if strings.TrimSpace(s.Name) == "" {
			errs = multierr.Append(errs, fmt.Errorf("system %d: name is required", i))
			continue
		}
		key := strings.ToUpper(s.Name)
		if seen[key] {
			errs = multierr.Append(errs, fmt.Errorf("system %s: duplicate name", s.Name))
		}
		seen[key] = true

		if s.Enabled {
			errs = multierr.Append(errs, validateSystem(s))
		}
	}

	switch c.Dispatch {
	case DispatchDraft:
	case DispatchSMTP:
		if c.SMTPServer == "" {
			errs = multierr.Append(errs, errors.New("smtp_server is required for smtp dispatch"))
		}
		if c.SMTPPort <= 0 {
			errs = multierr.Append(errs, errors.New("smtp_port is required for smtp dispatch"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("dispatch %q: want %q or %q", c.Dispatch, DispatchSMTP, DispatchDraft))
	}
	if len(c.EmailRecipients) == 0 {
		errs = multierr.Append(errs, errors.New("email_recipients must list at least one address"))
	}
	return errs
}

func validateSystem(s domain.SystemSpec) error {
	var errs error
	missing := func(field string) {
		errs = multierr.Append(errs, fmt.Errorf("system %s: %s is required", s.Name, field))
	}

	if s.Description == "" {
		missing("description")
	}

	w := s.Web
	if w.URL == "" {
		missing("web.url")
	}
	if w.Selectors.SuccessIndicator == "" {
		missing("web.selectors.success_indicator")
	}
	if w.Selectors.LogoutButton == "" {
		missing("web.selectors.logout_button")
	}
	if w.User != "" {
		if w.Selectors.UserInput == "" {
			missing("web.selectors.user_input")
		}
		if w.Selectors.PassInput == "" {
			missing("web.selectors.pass_input")
		}
		if w.Selectors.SubmitButton == "" {
			missing("web.selectors.submit_button")
		}
	} else if w.Selectors.OKButton == "" {
		missing("web.selectors.ok_button")
	}

	d := s.Database
	if d.Kind == "" {
		missing("database.db_type")
	}
	if d.Host == "" {
		missing("database.host")
	}
	if d.Port <= 0 {
		missing("database.port")
	}
	if d.ServiceName == "" {
		missing("database.db_name")
	}
	if d.User == "" {
		missing("database.user")
	}
	return errs
}

// NormalizeDispatch folds a channel name the way the YAML value is read.
func NormalizeDispatch(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// FlowWarnings lists enabled systems that name a web user but would still
// take the OK-button flow because their password, found by lookup, is empty,
// while no ok_button selector is configured for that flow.
func (c *Config) FlowWarnings(lookup func(string) (string, bool)) []string {
	var out []string
	for _, s := range c.Systems {
		if !s.Enabled || s.Web.User == "" || s.Web.Selectors.OKButton != "" {
			continue
		}
		key := s.WebPasswordKey()
		if v, ok := lookup(key); ok && v == "" {
			out = append(out, fmt.Sprintf("system %s: %s is empty, so the OK-button flow runs, but web.selectors.ok_button is not set", s.Name, key))
		}
	}
	return out
}

// EnabledCount returns how many systems will be probed.
func (c *Config) EnabledCount() int {
	n := 0
	for _, s := range c.Systems {
		if s.Enabled {
			n++
		}
	}
	return n
}
