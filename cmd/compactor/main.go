//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/compactor/entities/errors"
	"github.com/weaviate/compactor/usecases/config"
	"github.com/weaviate/compactor/usecases/monitoring"
)

type Options struct {
	ConfigFile string `long:"config-file" short:"c" description:"path to the compactor yaml or json config" env:"COMPACTOR_CONFIG_FILE"`
}

var opts Options

func main() {
	log := logger()

	parser := flags.NewParser(&opts, flags.Default)
	parser.AddCommand("inspect", "print a round completion checkpoint",
		"Loads the checkpoint of the configured source and destination and prints it as JSON.",
		&inspectCommand{log: log})
	parser.AddCommand("digest", "print locator digests",
		"Prints the identity digests of the stream, partition and delta given on the command line.",
		&digestCommand{})
	parser.AddCommand("compact", "run one compaction round against the local delta repo",
		"Compacts the configured source partition into the destination partition and writes the next checkpoint.",
		&compactCommand{log: log})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func logger() *logrus.Logger {
	logger := logrus.New()
	if os.Getenv("LOG_FORMAT") != "text" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "trace":
		logger.SetLevel(logrus.TraceLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}

func loadConfig(log logrus.FieldLogger) (config.Config, error) {
	cfg, err := config.LoadConfig(opts.ConfigFile, log)
	if err != nil {
		return cfg, err
	}
	if !cfg.Monitoring.Enabled {
		monitoring.Disable()
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(log logrus.FieldLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	enterrors.GoWrapper(func() {
		select {
		case sig := <-sigs:
			log.WithField("action", "shutdown").WithField("signal", sig.String()).
				Warn("received signal, aborting")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigs)
	}, log)
	return ctx, cancel
}
