package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Runtime holds process-level settings read from the environment.
type Runtime struct {
	Addr          string        // API bind address, e.g., "127.0.0.1:8080" or ":8080" (Docker)
	LogDir        string        // logs directory
	LogLevel      string        // debug|info|warn|error
	ConfigPath    string        // YAML document listing the systems
	SecretsPath   string        // dotenv file with passwords
	CheckInterval time.Duration // 0 disables scheduled batches in the API
	AdminAPIKeys  []string
	PublicAPIKeys []string

	SecretsFromEnv bool // environment values override the secrets file
	RunPerMinute   int  // POST /api/run budget per caller
}

func FromEnv() Runtime {
	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}

	level := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if level == "" {
		level = "info"
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	secretsPath := os.Getenv("SECRETS_PATH")
	if secretsPath == "" {
		secretsPath = ".env"
	}

	// Scheduling (0 = run only on demand)
	var interval time.Duration
	if v := os.Getenv("CHECK_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			interval = time.Duration(ms) * time.Millisecond
		}
	}

	runPerMin := 6
	if v := os.Getenv("RUN_RATE_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			runPerMin = n
		}
	}

	fromEnv, _ := strconv.ParseBool(os.Getenv("SECRETS_FROM_ENV"))

	return Runtime{
		Addr:          addr,
		LogDir:        logDir,
		LogLevel:      level,
		ConfigPath:    cfgPath,
		SecretsPath:   secretsPath,
		CheckInterval: interval,
		AdminAPIKeys:  splitList(os.Getenv("ADMIN_API_KEYS")),
		PublicAPIKeys: splitList(os.Getenv("PUBLIC_API_KEYS")),

		SecretsFromEnv: fromEnv,
		RunPerMinute:   runPerMin,
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
