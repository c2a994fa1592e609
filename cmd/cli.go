// Package cmd is the copilot command line.
package cmd

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/Breeze-CRM-Copilot/agent/app"
	configx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/config"
	logx "github.com/tanpawarit/Breeze-CRM-Copilot/pkg/logger"
)

// Run parses args and executes the selected command. It returns the
// process exit code.
func Run(args []string) int {
	configx.SetEnvFile(extractEnvPath(args))
	initLogging()

	opts := &Options{}
	opts.Init(commandName(args))

	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			return 0
		}
		log.Error().Err(err).Msg("command failed")
		return 1
	}
	return 0
}

// extractEnvPath scans raw args for -e/--env before full parsing so
// configuration can be read while the command executes.
func extractEnvPath(args []string) string {
	for i, a := range args {
		switch {
		case a == "-e" || a == "--env":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(a, "--env="):
			return strings.TrimPrefix(a, "--env=")
		}
	}
	return ""
}

// commandName returns the first positional argument, skipping the value of
// -e/--env.
func commandName(args []string) string {
	for i := 0; i < len(args); i++ {
		switch a := args[i]; {
		case a == "-e" || a == "--env":
			i++
		case strings.HasPrefix(a, "-"):
		default:
			return a
		}
	}
	return ""
}

func initLogging() {
	cfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		log.Warn().Err(err).Msg("log config unreadable, using defaults")
		return
	}
	logx.Init(*cfg)
}

func bootstrap(ctx context.Context) (*app.App, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}
