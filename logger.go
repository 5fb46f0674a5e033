package paintbynumbers

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/setanarut/paintbynumbers/utils"
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger used by every pipeline stage and by the
// utils palette helpers.
// By default nothing is logged. Pass nil to restore the silent default.
//
// Levels:
//   - [slog.LevelDebug]: per-iteration details (k-means deltas, merge picks)
//   - [slog.LevelInfo]: stage summaries
//   - [slog.LevelWarn]: excluded facets, clusters that stayed empty, dropped events
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
	utils.SetLogger(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
