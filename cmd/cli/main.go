// Command cli runs one health-check batch and delivers the report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/hamed0406/healthreport/internal/app"
	"github.com/hamed0406/healthreport/internal/config"
	"github.com/hamed0406/healthreport/internal/logging"
)

func main() {
	rt := config.FromEnv()

	configPath := flag.String("config", rt.ConfigPath, "YAML file listing the systems to check")
	secretsPath := flag.String("secrets", rt.SecretsPath, "dotenv file with the passwords")
	dispatch := flag.String("dispatch", "", "override the delivery channel (smtp|draft)")
	dryRun := flag.Bool("dry-run", false, "print the report to stdout instead of delivering it")
	flag.Parse()

	logger, err := logging.NewLogger(logging.Options{Dir: rt.LogDir, Level: rt.LogLevel, Console: os.Stderr})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	in, err := app.Load(*configPath, *secretsPath, rt.SecretsFromEnv)
	if err != nil {
		logger.Error("config_error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	if *dispatch != "" {
		in.Config.Dispatch = config.NormalizeDispatch(*dispatch)
		if err := in.Config.Validate(); err != nil {
			logger.Error("config_error", zap.Error(&config.Error{Path: *configPath, Err: err}))
			logger.Sync()
			os.Exit(1)
		}
	}

	for _, w := range in.Config.FlowWarnings(in.Secrets.Lookup) {
		logger.Warn("config_warning", zap.String("detail", w))
	}

	runner, err := app.NewRunner(logger, in, app.Options{DryRun: *dryRun})
	if err != nil {
		logger.Error("config_error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	rep, err := runner.Batch(context.Background())
	if err != nil {
		logger.Error("batch_error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	if *dryRun {
		fmt.Print(rep.HTML)
	}
}
