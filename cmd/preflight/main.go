// cmd/preflight/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/hamed0406/healthreport/internal/config"
	"github.com/hamed0406/healthreport/internal/domain"
	"github.com/hamed0406/healthreport/internal/secrets"
)

func main() {
	rt := config.FromEnv()
	configPath := flag.String("config", rt.ConfigPath, "YAML file listing the systems to check")
	secretsPath := flag.String("secrets", rt.SecretsPath, "dotenv file with the passwords")
	flag.Parse()

	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load(*configPath)
	if err != nil {
		var cerr *config.Error
		if errors.As(err, &cerr) {
			for _, e := range multierr.Errors(cerr.Err) {
				fmt.Fprintln(os.Stderr, "✖", e)
			}
		}
		fail(*configPath + " is not usable.")
	}
	ok(fmt.Sprintf("%s: %d systems, %d enabled, dispatch=%s", *configPath, len(cfg.Systems), cfg.EnabledCount(), cfg.Dispatch))

	store, err := secrets.Load(*secretsPath)
	if err != nil {
		fail(err.Error())
	}
	if rt.SecretsFromEnv {
		store = store.Overlay(secrets.RequiredKeys(cfg.Systems, cfg.Dispatch == config.DispatchSMTP), os.LookupEnv)
		ok("SECRETS_FROM_ENV=true; environment overrides " + *secretsPath)
	}

	// Missing system keys degrade single report cells; they do not stop a batch.
	missing := 0
	for _, s := range cfg.Systems {
		if !s.Enabled {
			continue
		}
		for _, key := range store.Missing([]string{s.WebPasswordKey(), s.DBPasswordKey()}) {
			warn(fmt.Sprintf("%s: %s is not set; that check will report a failure.", s.Name, key))
			missing++
		}
		if s.Web.User == "" {
			ok(s.Name + ": no web user; the OK-button flow will be used.")
		}
	}

	for _, w := range cfg.FlowWarnings(store.Lookup) {
		warn(w)
	}

	if cfg.Dispatch == config.DispatchSMTP {
		if v, found := store.Lookup(domain.SMTPPasswordKey); !found || v == "" {
			warn("SMTP_PASSWORD empty; mail is sent without STARTTLS or AUTH.")
		} else {
			ok("SMTP_PASSWORD present; STARTTLS and AUTH will be used.")
		}
	}

	if missing == 0 {
		ok("all credentials present")
	}
	ok("preflight passed")
}
