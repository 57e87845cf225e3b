package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Kitt3120/lum/app"
	"github.com/Kitt3120/lum/config"
	"github.com/Kitt3120/lum/errors"
	"github.com/Kitt3120/lum/log"
	"github.com/Kitt3120/lum/service"
	"github.com/Kitt3120/lum/service/configwatch"
	"github.com/Kitt3120/lum/service/heartbeat"
)

const (
	flagConfig  = "config"
	flagVerbose = "verbose"
	flagDebug   = "debug"
)

var cfg *config.Config

func configPath(ctx *cli.Context) (string, error) {
	if path := ctx.Path(flagConfig); path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

func preRun(ctx *cli.Context) error {
	path, err := configPath(ctx)
	if err != nil {
		return err
	}

	cfg, err = config.Load(path)
	if err != nil {
		return err
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", cfg.Log.Level)
	}
	if ctx.Bool(flagVerbose) {
		level = log.InfoLevel
	}
	if ctx.Bool(flagDebug) {
		level = log.DebugLevel
	}
	log.SetLevel(level)

	return nil
}

func run(ctx *cli.Context) error {
	path, err := configPath(ctx)
	if err != nil {
		return err
	}

	builder := app.NewBuilder(cfg.Name).
		WithStartTimeout(cfg.Services.StartTimeout.Duration).
		WithStopTimeout(cfg.Services.StopTimeout.Duration).
		WithStatusBuffer(cfg.Services.StatusBuffer).
		With(configwatch.New(path, service.Optional))

	if cfg.Heartbeat.Enabled {
		builder.With(heartbeat.New(cfg.Heartbeat.Interval.Duration, service.Optional))
	}

	return builder.Build().Run(ctx.Context)
}

func main() {
	cliApp := &cli.App{
		Name:  "lum",
		Usage: "service supervision runtime",
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "configuration file path",
			},
			&cli.BoolFlag{
				Name:  flagVerbose,
				Usage: "set info log level",
			},
			&cli.BoolFlag{
				Name:     flagDebug,
				Usage:    "set debug log level",
				Category: "debug",
			},
		},
		Before: preRun,
		Action: run,
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
