// Package extensions provides optional Pool lifecycle hooks: structured
// logging and a dependency-graph debug aid for diagnosing stuck or
// misbehaving cycles.
package extensions

import (
	"log/slog"

	"github.com/pumped-fn/lattice"
)

// LoggingExtension logs every cell settlement and cycle resolution through
// an slog.Logger, generalized from the teacher's LoggingExtension (which
// wrapped every resolve/update operation) down to the two events a
// dataflow pool actually produces.
type LoggingExtension[V any] struct {
	lattice.BaseExtension[V]
	logger *slog.Logger
}

// NewLoggingExtension creates a logging extension writing through logger.
// A nil logger falls back to slog.Default().
func NewLoggingExtension[V any](logger *slog.Logger) *LoggingExtension[V] {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingExtension[V]{
		BaseExtension: lattice.BaseExtension[V]{ExtensionName: "logging"},
		logger:        logger,
	}
}

func (e *LoggingExtension[V]) OnCellSettle(cell *lattice.Cell[V], value V) {
	e.logger.Info("cell settled", "cell", cell.ID(), "name", cell.Name())
}

func (e *LoggingExtension[V]) OnCycleResolved(cells []*lattice.Cell[V]) {
	ids := make([]string, len(cells))
	for i, c := range cells {
		ids[i] = c.ID()
	}
	e.logger.Info("cycle resolved", "cells", ids, "size", len(cells))
}
