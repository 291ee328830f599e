package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Logger

	file *os.File
}

func NewLogger(verbose bool) *Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   true,
	})

	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	return &Logger{Logger: log}
}

// NewAuditLogger tees output to a log file alongside stdout so an audit run
// leaves a reviewable trail next to the reports. A file open failure falls
// back to stdout-only logging.
func NewAuditLogger(verbose bool, logPath string) *Logger {
	log := NewLogger(verbose)

	if logPath == "" {
		return log
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Warnf("cannot open log file %s, logging to stdout only: %v", logPath, err)
		return log
	}

	log.SetOutput(io.MultiWriter(os.Stdout, file))
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: true,
	})
	log.file = file

	return log
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
