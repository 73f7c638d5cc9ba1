package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"
)

func TestFromEnv_ParsesAndDefaults(t *testing.T) {
	t.Setenv("API_ADDR", ":9090")
	t.Setenv("LOG_DIR", "./_testlogs")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("CONFIG_PATH", "/etc/healthreport/config.yaml")
	t.Setenv("SECRETS_PATH", "/etc/healthreport/.env")
	t.Setenv("CHECK_INTERVAL_MS", "60000")
	t.Setenv("ADMIN_API_KEYS", "adm_x, adm_y")
	t.Setenv("PUBLIC_API_KEYS", "pub_a")
	t.Setenv("SECRETS_FROM_ENV", "true")
	t.Setenv("RUN_RATE_PER_MIN", "0")

	cfg := FromEnv()

	if cfg.Addr != ":9090" || cfg.LogDir != "./_testlogs" || cfg.LogLevel != "debug" {
		t.Fatalf("addr/logdir/level wrong: %+v", cfg)
	}
	if cfg.ConfigPath != "/etc/healthreport/config.yaml" || cfg.SecretsPath != "/etc/healthreport/.env" {
		t.Fatalf("paths wrong: %+v", cfg)
	}
	if cfg.CheckInterval != time.Minute {
		t.Fatalf("interval wrong: %v", cfg.CheckInterval)
	}
	if len(cfg.AdminAPIKeys) != 2 || cfg.AdminAPIKeys[1] != "adm_y" {
		t.Fatalf("admin keys wrong: %+v", cfg.AdminAPIKeys)
	}
	if len(cfg.PublicAPIKeys) != 1 {
		t.Fatalf("public keys wrong: %+v", cfg.PublicAPIKeys)
	}
	if !cfg.SecretsFromEnv || cfg.RunPerMinute != 0 {
		t.Fatalf("secrets/run rate wrong: %+v", cfg)
	}

	// ensure defaults don’t crash if missing env
	os.Unsetenv("API_ADDR")
	os.Unsetenv("CHECK_INTERVAL_MS")
	os.Unsetenv("SECRETS_FROM_ENV")
	os.Unsetenv("RUN_RATE_PER_MIN")
	def := FromEnv()
	if def.Addr != "127.0.0.1:8080" || def.CheckInterval != 0 || def.SecretsFromEnv || def.RunPerMinute != 6 {
		t.Fatalf("defaults wrong: %+v", def)
	}
}

const validYAML = `
systems_to_check:
  - name: crm
    description: CRM Producción
    enabled: true
    web:
      url: https://crm.example.com/login
      user: monitor
      selectors:
        user_input: "#username"
        pass_input: "#password"
        submit_button: "button[type=submit]"
        success_indicator: "#dashboard"
        logout_button: "a.logout"
    database:
      db_type: oracle
      host: db.example.com
      port: 1521
      db_name: CRMPRD
      user: monitor
  - name: kiosk
    description: Kiosco
    enabled: true
    web:
      url: https://kiosk.example.com/
      selectors:
        ok_button: "#ok"
        success_indicator: ".welcome"
        logout_button: "#exit"
    database:
      db_type: postgres
      host: pg.example.com
      port: 5432
      db_name: kiosk
      user: monitor
  - name: legacy
    enabled: false
smtp_server: smtp.example.com
smtp_port: 587
smtp_user: reports@example.com
email_recipients: [ops@example.com]
timeouts:
  success_indicator: 5s
`

func TestParse_ValidDocument(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Systems) != 3 || cfg.EnabledCount() != 2 {
		t.Fatalf("systems wrong: %d total, %d enabled", len(cfg.Systems), cfg.EnabledCount())
	}
	crm := cfg.Systems[0]
	if crm.Web.Selectors.UserInput != "#username" || crm.Database.ServiceName != "CRMPRD" || crm.Database.Port != 1521 {
		t.Fatalf("crm decoded wrong: %+v", crm)
	}
	if cfg.Dispatch != DispatchDraft || cfg.ReportSubject != DefaultSubject {
		t.Fatalf("defaults not applied: dispatch=%q subject=%q", cfg.Dispatch, cfg.ReportSubject)
	}
	if cfg.Timeouts.SuccessIndicator != 5*time.Second {
		t.Fatalf("explicit timeout lost: %v", cfg.Timeouts.SuccessIndicator)
	}
	if cfg.Timeouts.ReturnIndicator != 10*time.Second || cfg.Timeouts.Navigation != 20*time.Second {
		t.Fatalf("default timeouts wrong: %+v", cfg.Timeouts)
	}
}

func TestParse_ReportsEveryProblem(t *testing.T) {
	doc := `
systems_to_check:
  - name: crm
    description: CRM
    enabled: true
    web:
      url: https://crm.example.com
      user: monitor
      selectors:
        success_indicator: "#ok"
        logout_button: "#out"
    database:
      db_type: oracle
  - name: CRM
    enabled: false
dispatch: smtp
email_recipients: [ops@example.com]
`
	_, err := Parse([]byte(doc))
	if err == nil {
		t.Fatal("want validation error")
	}
	errs := multierr.Errors(err)
	// user_input, pass_input, submit_button, host, port, db_name, db user,
	// duplicate name, smtp_server, smtp_port
	if len(errs) != 10 {
		t.Fatalf("want 10 problems, got %d: %v", len(errs), err)
	}
	if !strings.Contains(err.Error(), "duplicate name") {
		t.Fatalf("duplicate name not reported: %v", err)
	}
}

func TestParse_AcknowledgeFlowNeedsOKButton(t *testing.T) {
	doc := strings.Replace(validYAML, `ok_button: "#ok"`, `ok_button: ""`, 1)
	_, err := Parse([]byte(doc))
	if err == nil || !strings.Contains(err.Error(), "system kiosk: web.selectors.ok_button is required") {
		t.Fatalf("want ok_button error, got %v", err)
	}
}

func TestLoad_MissingFileIsConfigurationError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("want *config.Error, got %T %v", err, err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want wrapped ErrNotExist, got %v", err)
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SMTPServer != "smtp.example.com" || cfg.SMTPPort != 587 {
		t.Fatalf("smtp settings wrong: %+v", cfg)
	}
}

func TestParse_EmptySystemListIsValid(t *testing.T) {
	cfg, err := Parse([]byte("systems_to_check: []\nemail_recipients: [ops@example.com]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Systems) != 0 || cfg.EnabledCount() != 0 {
		t.Fatalf("systems: %+v", cfg.Systems)
	}
	if cfg.Timeouts.SMTPSend != time.Minute {
		t.Fatalf("smtp_send default: %v", cfg.Timeouts.SMTPSend)
	}
}

func TestNormalizeDispatch(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Dispatch = NormalizeDispatch(" SMTP ")
	if cfg.Dispatch != DispatchSMTP {
		t.Fatalf("dispatch = %q", cfg.Dispatch)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("upper-case channel rejected: %v", err)
	}
}

func TestFlowWarnings_UserWithEmptyPasswordNeedsOKButton(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatal(err)
	}
	secrets := map[string]string{"CRM_WEB_PASSWORD": "", "KIOSK_WEB_PASSWORD": ""}
	lookup := func(k string) (string, bool) { v, ok := secrets[k]; return v, ok }

	got := cfg.FlowWarnings(lookup)
	if len(got) != 1 || !strings.Contains(got[0], "system crm") || !strings.Contains(got[0], "ok_button") {
		t.Fatalf("warnings: %v", got)
	}

	secrets["CRM_WEB_PASSWORD"] = "pw"
	if got := cfg.FlowWarnings(lookup); len(got) != 0 {
		t.Fatalf("login flow should not warn: %v", got)
	}
	delete(secrets, "CRM_WEB_PASSWORD")
	if got := cfg.FlowWarnings(lookup); len(got) != 0 {
		t.Fatalf("absent key is reported elsewhere: %v", got)
	}
}
