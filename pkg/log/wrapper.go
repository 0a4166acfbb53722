package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// SetupLogger configures the global logger. An unknown level falls back to info.
func SetupLogger(level string) {
	logrus.SetOutput(os.Stdout)
	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "15:04:05.000000000",
		FullTimestamp:   true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	logrus.SetLevel(lvl)
}

func WithField(key string, value any) *logrus.Entry {
	return logrus.WithField(key, value)
}

func Debugf(format string, args ...any) {
	logrus.Debugf(format, args...)
}

func Info(args ...any) {
	logrus.Info(args...)
}

func Infof(format string, args ...any) {
	logrus.Infof(format, args...)
}

func Warnf(format string, args ...any) {
	logrus.Warnf(format, args...)
}

func Error(args ...any) {
	logrus.Error(args...)
}

func Errorf(format string, args ...any) {
	logrus.Errorf(format, args...)
}

func Fatal(args ...any) {
	logrus.Fatal(args...)
}
