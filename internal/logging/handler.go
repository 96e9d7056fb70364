package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options configures the process logger.
type Options struct {
	// Format is "text" (default) or "json".
	Format string

	// Debug lowers the level to slog.LevelDebug.
	Debug bool

	// Writer receives log output. Defaults to os.Stderr so stdout stays free
	// for the stdio MCP transport.
	Writer io.Writer
}

// New builds a slog.Logger for the given options.
func New(opts Options) (*slog.Logger, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(opts.Format) {
	case "", FormatText:
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q, must be one of: text, json", opts.Format)
	}
}
