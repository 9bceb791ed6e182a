package extensions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pumped-fn/lattice"
)

// GraphDebugExtension logs a rendered view of whatever cycle the resolver
// just closed out, for diagnosing dataflow graphs that settle somewhere
// unexpected. A rename and narrowing of the teacher's GraphDebugExtension
// (graph_debug.go), which rendered the whole scope's dependency graph on
// any resolution error; this renders just the SCC a cycle round resolved,
// since that's the only place an implicit closed-world decision (Key vs.
// an actual dependency) gets made silently.
type GraphDebugExtension[V any] struct {
	lattice.BaseExtension[V]
	registry *lattice.CellRegistry
	logger   *slog.Logger
}

// NewGraphDebugExtension attaches to pool's registry and logs through
// logHandler. It is built from an existing pool, so register it with
// pool.AddExtension after NewPool returns. Cells are labelled by their
// Name, or by their ID when the name is empty.
func NewGraphDebugExtension[V any](pool *lattice.Pool[V], logHandler slog.Handler) *GraphDebugExtension[V] {
	return &GraphDebugExtension[V]{
		BaseExtension: lattice.BaseExtension[V]{ExtensionName: "graph-debug"},
		registry:      pool.Registry(),
		logger:        slog.New(logHandler),
	}
}

func (e *GraphDebugExtension[V]) OnCycleResolved(cells []*lattice.Cell[V]) {
	e.logger.Error("lattice cycle resolved", "detail", e.formatCycle(cells))
}

func (e *GraphDebugExtension[V]) label(c *lattice.Cell[V]) string {
	if c.Name() != "" {
		return c.Name()
	}
	return c.ID()
}

func (e *GraphDebugExtension[V]) formatCycle(cells []*lattice.Cell[V]) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\nclosed SCC, %d member(s):\n", len(cells)))
	for i, c := range cells {
		prefix := "├─>"
		if i == len(cells)-1 {
			prefix = "└─>"
		}
		sb.WriteString(fmt.Sprintf("  %s %s [%s]\n", prefix, e.label(c), c.State()))
	}
	return sb.String()
}

// SilentHandler is an slog.Handler that discards all output, for tests
// that want a GraphDebugExtension without log noise.
type SilentHandler struct{}

func NewSilentHandler() *SilentHandler { return &SilentHandler{} }

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return false
}

func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error {
	return nil
}

func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *SilentHandler) WithGroup(name string) slog.Handler      { return h }

// HumanHandler formats log records for readability, the way the teacher's
// HumanHandler did, rather than emitting compact JSON — useful when a
// developer is staring at a terminal trying to understand a stuck cycle.
type HumanHandler struct {
	writer io.Writer
	level  slog.Level
}

func NewHumanHandler(writer io.Writer, level slog.Level) *HumanHandler {
	return &HumanHandler{writer: writer, level: level}
}

func (h *HumanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *HumanHandler) Handle(ctx context.Context, record slog.Record) error {
	if _, err := fmt.Fprintf(h.writer, "[%s] %s\n", record.Level, record.Message); err != nil {
		return err
	}
	var writeErr error
	record.Attrs(func(a slog.Attr) bool {
		if _, err := fmt.Fprintf(h.writer, "  %s: %v\n", a.Key, a.Value); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	return writeErr
}

func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *HumanHandler) WithGroup(name string) slog.Handler      { return h }
