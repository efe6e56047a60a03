package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"go.temporal.io/sdk/log"
)

// TemporalLogger routes Temporal SDK logs through logrus.
type TemporalLogger struct {
	entry *logrus.Entry
}

var _ log.Logger = (*TemporalLogger)(nil)

// NewTemporalLogger wraps logger for client.Options.Logger.
func NewTemporalLogger(logger *logrus.Logger) *TemporalLogger {
	return &TemporalLogger{entry: logrus.NewEntry(logger)}
}

func (l *TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals)).Debug(msg)
}

func (l *TemporalLogger) Info(msg string, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals)).Info(msg)
}

func (l *TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals)).Warn(msg)
}

func (l *TemporalLogger) Error(msg string, keyvals ...interface{}) {
	l.entry.WithFields(fields(keyvals)).Error(msg)
}

// With returns a logger carrying keyvals on every line.
func (l *TemporalLogger) With(keyvals ...interface{}) log.Logger {
	return &TemporalLogger{entry: l.entry.WithFields(fields(keyvals))}
}

// fields pairs up keyvals. A trailing key without a value is kept under
// "extra".
func fields(keyvals []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 == len(keyvals) {
			f["extra"] = keyvals[i]
			break
		}
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		f[key] = keyvals[i+1]
	}
	return f
}
