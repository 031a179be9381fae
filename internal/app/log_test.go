package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFtHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		runID   string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			runID:   "20240615T143045Z",
			level:   slog.LevelInfo,
			message: "scan finished",
			want:    "2024-06-15T14:30:45Z\tINFO\t20240615T143045Z\tscan finished\n",
		},
		{
			name:    "debug level",
			runID:   "run-456",
			level:   slog.LevelDebug,
			message: "batch applied",
			want:    "2024-06-15T14:30:45Z\tDEBUG\trun-456\tbatch applied\n",
		},
		{
			name:    "with record attrs",
			runID:   "run-789",
			level:   slog.LevelInfo,
			message: "file classified",
			attrs:   []slog.Attr{slog.String("path", "/docs/invoice.pdf"), slog.Int("size", 42)},
			want:    "2024-06-15T14:30:45Z\tINFO\trun-789\tfile classified\tpath=/docs/invoice.pdf\tsize=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &ftHandler{w: &buf, runID: tt.runID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() wrote %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFtHandler_WithAttrs(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	var buf bytes.Buffer
	base := &ftHandler{w: &buf, runID: "run-1"}
	h := base.WithAttrs([]slog.Attr{slog.String("plan", "plan-9")})

	r := slog.NewRecord(ts, slog.LevelInfo, "action applied", 0)
	r.AddAttrs(slog.String("action", "a-3"))

	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "\tplan=plan-9\t") {
		t.Errorf("pre-set attr missing from %q", got)
	}
	if !strings.Contains(got, "\taction=a-3\n") {
		t.Errorf("record attr missing from %q", got)
	}

	// The base handler must not inherit the derived handler's attrs.
	buf.Reset()
	r2 := slog.NewRecord(ts, slog.LevelInfo, "plain", 0)
	if err := base.Handle(context.Background(), r2); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if strings.Contains(buf.String(), "plan=") {
		t.Errorf("base handler leaked derived attrs: %q", buf.String())
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	logger, sink, err := newLogger(dir, "run-1")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer sink.Close()

	logger.Info("hello", "k", "v")

	// lumberjack creates the file on first write.
	data, err := os.ReadFile(filepath.Join(dir, "ft.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "\trun-1\thello\tk=v") {
		t.Errorf("log file content = %q", data)
	}
}
