package config

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger from the log section. Unknown levels
// fall back to info.
func (c *Config) NewLogger(out io.Writer) *logrus.Logger {
	logg := logrus.New()
	if out == nil {
		out = os.Stderr
	}
	logg.SetOutput(out)
	if c != nil && c.Log.Formato == "json" {
		logg.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logg.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level := logrus.InfoLevel
	if c != nil && c.Log.Nivel != "" {
		if lv, err := logrus.ParseLevel(c.Log.Nivel); err == nil {
			level = lv
		}
	}
	logg.SetLevel(level)
	return logg
}

// LogError logs err with the calling module and function attached.
func LogError(logger *logrus.Logger, moduleName, funcName string, fields logrus.Fields, err error) {
	if logger == nil || err == nil {
		return
	}
	entry := logger.WithFields(logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
	})
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(err.Error())
}
