package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

func Init(level, format string) *logrus.Logger {
	return New(os.Stdout, level, format)
}

func New(out io.Writer, level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		logger.Warnf("bad log level %q, set default 'info'", level)
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger
}
