package graph

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	neo4jlog "github.com/neo4j/neo4j-go-driver/v5/neo4j/log"
)

// driverLogger forwards Neo4j driver diagnostics to a charmbracelet
// logger. Info and debug messages are dropped unless debug is set.
//
// The driver writes through its own "neo4j" sub-logger. Turning on debug
// lowers only that sub-logger's level, so --neo4j-debug never changes what
// the rest of the CLI prints.
type driverLogger struct {
	logger *log.Logger
	debug  bool
}

var _ neo4jlog.Logger = (*driverLogger)(nil)

func newDriverLogger(logger *log.Logger, debug bool) *driverLogger {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	// WithPrefix copies the logger, level included; changing the copy's
	// level leaves the parent alone.
	sub := logger.WithPrefix("neo4j")
	if debug {
		sub.SetLevel(log.DebugLevel)
	}
	return &driverLogger{logger: sub, debug: debug}
}

func (d *driverLogger) Error(name, id string, err error) {
	d.logger.Error(err.Error(), "component", name, "id", id)
}

func (d *driverLogger) Warnf(name, id, msg string, args ...any) {
	d.logger.Warn(fmt.Sprintf(msg, args...), "component", name, "id", id)
}

func (d *driverLogger) Infof(name, id, msg string, args ...any) {
	if d.debug {
		d.logger.Info(fmt.Sprintf(msg, args...), "component", name, "id", id)
	}
}

func (d *driverLogger) Debugf(name, id, msg string, args ...any) {
	if d.debug {
		d.logger.Debug(fmt.Sprintf(msg, args...), "component", name, "id", id)
	}
}
