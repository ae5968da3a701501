package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	LogLevel string           `short:"l" help:"Log level (debug, info, warn, error); overrides the config file"`

	Server   ServerCmd   `cmd:"" help:"Run the table server"`
	Simulate SimulateCmd `cmd:"" help:"Play all-AI tables and report results"`
}

func main() {
	// A missing .env is fine; the environment may be set some other way.
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("holdemtables"),
		kong.Description("Texas Hold'em tables for humans and house AI"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}

// newLogger builds the root logger. The flag wins over the config file.
func newLogger(flagLevel, configLevel string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	level := configLevel
	if flagLevel != "" {
		level = flagLevel
	}
	switch level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}
