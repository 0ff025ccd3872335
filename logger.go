// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"
)

// nopLogger, the default logger, drops everything.
type nopLogger struct{}

func (*nopLogger) Level() kgo.LogLevel { return kgo.LogLevelNone }
func (*nopLogger) Log(kgo.LogLevel, string, ...any) {
}

// NewLogrusLogger adapts a logrus logger to the kgo.Logger interface the relay
// and the underlying Kafka client log through. The kgo verbosity follows the
// logrus level, so one knob controls both.
func NewLogrusLogger(l *logrus.Logger) kgo.Logger {
	return &logrusLogger{l: l}
}

type logrusLogger struct {
	l *logrus.Logger
}

func (x *logrusLogger) Level() kgo.LogLevel {
	switch x.l.GetLevel() {
	case logrus.TraceLevel, logrus.DebugLevel:
		return kgo.LogLevelDebug
	case logrus.InfoLevel:
		return kgo.LogLevelInfo
	case logrus.WarnLevel:
		return kgo.LogLevelWarn
	default:
		return kgo.LogLevelError
	}
}

func (x *logrusLogger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			k = fmt.Sprint(keyvals[i])
		}
		fields[k] = keyvals[i+1]
	}

	entry := x.l.WithFields(fields)
	switch level {
	case kgo.LogLevelDebug:
		entry.Debug(msg)
	case kgo.LogLevelInfo:
		entry.Info(msg)
	case kgo.LogLevelWarn:
		entry.Warn(msg)
	case kgo.LogLevelError:
		entry.Error(msg)
	}
}
