// Package logging configures the application-wide logrus logger:
// JSON output and a configurable level, in the style of
// coredhcp/coredhcp's package-level logger (see
// other_examples/91b05845_coredhcp-coredhcp__server-handle.go.go's
// log.Printf/log.Warningf/log.Errorf call sites) adapted onto logrus
// directly rather than a bespoke wrapper interface.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger writing JSON lines to stderr at the given
// level ("debug", "info", "warn", "error"; invalid values fall back to
// "info").
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
