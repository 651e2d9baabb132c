package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/lumagen/lumagen/internal/app"
	"github.com/lumagen/lumagen/internal/config"
)

// main runs the CLI entrypoint and exits on unrecoverable errors.
func main() {
	if errRun := run(os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("command failed")
		os.Exit(1)
	}
}

// run parses flags, loads config, and starts the server.
func run(args []string) error {
	fs := flag.NewFlagSet("lumagen", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	port := fs.Int("port", 8150, "server port")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}
	if errValidate := validatePort(*port); errValidate != nil {
		return errValidate
	}

	appCfg, errLoad := config.LoadFromEnv()
	if errLoad != nil {
		return errLoad
	}
	if strings.TrimSpace(*cfgPath) != "" {
		appCfg.ConfigPath = config.ResolveConfigPath(*cfgPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.RunServer(ctx, appCfg, *port)
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
