package logger

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// Log is the logging interface used throughout pkgforge. It is implemented by LogrusLogger
// for real use and by NoOpLog for tests and components that don't want logging.
type Log interface {
	WithField(name string, value interface{}) Log
	WithFields(fields Fields) Log
	Debug(args ...interface{})
	Debugf(msg string, args ...interface{})
	Info(args ...interface{})
	Infof(msg string, args ...interface{})
	Warn(args ...interface{})
	Warnf(msg string, args ...interface{})
	Error(args ...interface{})
	Errorf(msg string, args ...interface{})
	Panic(args ...interface{})
	Panicf(msg string, args ...interface{})
}

// Fields is a set of keys/values to include in a structured log message.
type Fields map[string]interface{}

// LogFactory produces a logger that can be used to log messages for the specified subsystem.
type LogFactory func(subsystem string) Log

// LogrusLogger is a Log implementation backed by logrus.
type LogrusLogger struct {
	*logrus.Entry
}

func (l *LogrusLogger) WithField(name string, value interface{}) Log {
	return &LogrusLogger{Entry: l.Entry.WithField(name, value)}
}

func (l *LogrusLogger) WithFields(fields Fields) Log {
	return &LogrusLogger{Entry: l.Entry.WithFields(logrus.Fields(fields))}
}

// NewLogrusLogFactory creates a LogFactory that logs to stdout, using colorized text output
// when attached to a terminal and JSON otherwise.
func NewLogrusLogFactory(level logrus.Level) LogFactory {
	return func(subsystem string) Log {
		log := logrus.New()
		log.SetLevel(level)
		log.SetOutput(os.Stdout)
		if isatty.IsTerminal(os.Stdout.Fd()) {
			log.SetFormatter(&logrus.TextFormatter{
				TimestampFormat: "2006-01-02 15:04:05",
				FullTimestamp:   true,
				DisableQuote:    true,
			})
		} else {
			log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
		}
		entry := log.WithFields(logrus.Fields{"system": subsystem})
		return &LogrusLogger{Entry: entry}
	}
}

// NoOpLog implements Log without performing any logging.
type NoOpLog struct{}

func NewNoOpLog() *NoOpLog { return &NoOpLog{} }

func NoOpLogFactory(subsystem string) Log { return NewNoOpLog() }

func (l *NoOpLog) WithField(name string, value interface{}) Log { return l }
func (l *NoOpLog) WithFields(fields Fields) Log                 { return l }
func (l *NoOpLog) Debug(args ...interface{})                    {}
func (l *NoOpLog) Debugf(msg string, args ...interface{})       {}
func (l *NoOpLog) Info(args ...interface{})                     {}
func (l *NoOpLog) Infof(msg string, args ...interface{})        {}
func (l *NoOpLog) Warn(args ...interface{})                     {}
func (l *NoOpLog) Warnf(msg string, args ...interface{})        {}
func (l *NoOpLog) Error(args ...interface{})                    {}
func (l *NoOpLog) Errorf(msg string, args ...interface{})       {}
func (l *NoOpLog) Panic(args ...interface{})                    {}
func (l *NoOpLog) Panicf(msg string, args ...interface{})       {}
