package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig configures the rotating log file. An empty Directory keeps
// logging on stderr only.
type LogConfig struct {
	Directory  string `yaml:"directory"`
	FileName   string `yaml:"fileName"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
	// Quiet drops the stderr copy so only the file receives log lines.
	Quiet bool `yaml:"quiet"`
}

var (
	logMu   sync.Mutex
	logger  = log.New(os.Stderr, "[eac3fix] ", log.LstdFlags|log.Lmicroseconds)
	rotator *lumberjack.Logger
)

func Logf(format string, args ...interface{}) {
	logMu.Lock()
	l := logger
	logMu.Unlock()
	l.Printf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	logMu.Lock()
	l := logger
	logMu.Unlock()
	l.Fatalf(format, args...)
}

// SetLogOutput redirects the package logger.
func SetLogOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	logger.SetOutput(w)
}

// SetupLogging attaches a lumberjack rotator according to cfg. The returned
// function closes the rotator and restores stderr.
func SetupLogging(cfg LogConfig) (func() error, error) {
	if cfg.Directory == "" {
		if !cfg.Quiet {
			return func() error { return nil }, nil
		}
		SetLogOutput(io.Discard)
		return func() error {
			SetLogOutput(os.Stderr)
			return nil
		}, nil
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	name := cfg.FileName
	if name == "" {
		name = "eac3fix.log"
	}
	r := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, name),
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
	logMu.Lock()
	rotator = r
	if cfg.Quiet {
		logger.SetOutput(r)
	} else {
		logger.SetOutput(io.MultiWriter(os.Stderr, r))
	}
	logMu.Unlock()
	return func() error {
		logMu.Lock()
		defer logMu.Unlock()
		logger.SetOutput(os.Stderr)
		if rotator == nil {
			return nil
		}
		err := rotator.Close()
		rotator = nil
		return err
	}, nil
}
