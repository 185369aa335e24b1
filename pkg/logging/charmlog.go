package logging

import (
	"os"

	charm "github.com/charmbracelet/log"
)

// CharmLogger backs Logger with charmbracelet/log, giving the reference
// host (cmd/palaverd) leveled, timestamped, color-aware terminal output.
type CharmLogger struct {
	l *charm.Logger
}

// NewCharmLogger builds a CharmLogger writing to stderr with the given
// name as its report prefix (e.g. "transcriber", "router").
func NewCharmLogger(name string) *CharmLogger {
	l := charm.NewWithOptions(os.Stderr, charm.Options{
		ReportTimestamp: true,
		Prefix:          name,
	})
	return &CharmLogger{l: l}
}

func (c *CharmLogger) Debug(msg string, args ...interface{}) { c.l.Debug(msg, args...) }
func (c *CharmLogger) Info(msg string, args ...interface{})  { c.l.Info(msg, args...) }
func (c *CharmLogger) Warn(msg string, args ...interface{})  { c.l.Warn(msg, args...) }
func (c *CharmLogger) Error(msg string, args ...interface{}) { c.l.Error(msg, args...) }
