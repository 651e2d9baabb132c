// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lumagen/lumagen/internal/config"
)

// Setup applies log level and output destinations from config.
func Setup(cfg config.LogConfig) {
	level, errParse := log.ParseLevel(cfg.Level)
	if errParse != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if cfg.File == "" {
		log.SetOutput(os.Stdout)
		return
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	if rotator.MaxSize <= 0 {
		rotator.MaxSize = 50
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
}
