package observability

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeChainLoad EventType = "chain_load"
	EventTypeRun       EventType = "run"
	EventTypeStep      EventType = "step"
	EventTypeLLM       EventType = "llm"
	EventTypeBatch     EventType = "batch"
	EventTypeBatchRow  EventType = "batch_row"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType      `json:"type"`
	Debug     bool           `json:"-"`
	RunID     string         `json:"run_id,omitempty"`
	Chain     string         `json:"chain,omitempty"`
	Step      string         `json:"step,omitempty"`
	Message   string         `json:"message,omitempty"`
	Err       error          `json:"-"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Logger handles structured logging. LLM events are additionally appended
// to a jsonl transcript file when one is configured.
type Logger struct {
	zl         zerolog.Logger
	llmLogPath string
	maxSize    int64
}

// Option configures a Logger.
type Option func(*Logger)

// WithLLMLog sets the transcript path for LLM events. An empty path disables it.
func WithLLMLog(path string) Option {
	return func(l *Logger) { l.llmLogPath = path }
}

// WithLevel sets the minimum level. Unknown names fall back to info.
func WithLevel(level string) Option {
	return func(l *Logger) {
		lvl, err := zerolog.ParseLevel(level)
		if err != nil || level == "" {
			lvl = zerolog.InfoLevel
		}
		l.zl = l.zl.Level(lvl)
	}
}

func NewLogger(w io.Writer, opts ...Option) *Logger {
	l := &Logger{
		zl:      zerolog.New(w).With().Timestamp().Logger().Level(zerolog.InfoLevel),
		maxSize: 10 * 1024 * 1024, // 10MB
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewConsoleLogger logs to stderr, human-readable when stderr is a terminal
// and JSON otherwise.
func NewConsoleLogger(opts ...Option) *Logger {
	var w io.Writer = os.Stderr
	if term.IsTerminal(int(os.Stderr.Fd())) {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	return NewLogger(w, opts...)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Zerolog exposes the underlying logger for ad-hoc fields.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

// Log emits a structured event.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	level := zerolog.InfoLevel
	switch {
	case evt.Err != nil:
		level = zerolog.ErrorLevel
	case evt.Debug:
		level = zerolog.DebugLevel
	}

	e := l.zl.WithLevel(level).Str("type", string(evt.Type))
	if evt.RunID != "" {
		e = e.Str("run_id", evt.RunID)
	}
	if evt.Chain != "" {
		e = e.Str("chain", evt.Chain)
	}
	if evt.Step != "" {
		e = e.Str("step", evt.Step)
	}
	if evt.Err != nil {
		e = e.Err(evt.Err)
	}
	if len(evt.Data) > 0 {
		e = e.Fields(evt.Data)
	}
	e.Msg(evt.Message)

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		data, err := json.Marshal(evt)
		if err != nil {
			l.zl.Error().Err(err).Msg("failed to marshal llm event")
			return
		}
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		l.zl.Warn().Err(err).Msg("failed to create log directory")
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		l.zl.Warn().Err(err).Msg("failed to open log file")
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		l.zl.Warn().Err(err).Msg("failed to write to log file")
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogChainLoad(name, description string, steps int) {
	l.Log(Event{
		Type:    EventTypeChainLoad,
		Chain:   name,
		Message: "chain loaded",
		Data: map[string]any{
			"description": description,
			"steps":       steps,
		},
	})
}

func (l *Logger) LogStep(runID, chain, step string, data map[string]any) {
	l.Log(Event{
		Type:    EventTypeStep,
		Debug:   true,
		RunID:   runID,
		Chain:   chain,
		Step:    step,
		Message: "executing step",
		Data:    data,
	})
}

func (l *Logger) LogStepFailed(runID, chain, step string, err error) {
	l.Log(Event{
		Type:    EventTypeStep,
		RunID:   runID,
		Chain:   chain,
		Step:    step,
		Message: "step failed",
		Err:     err,
	})
}

func (l *Logger) LogRun(runID, chain string, elapsed time.Duration, err error) {
	msg := "chain completed"
	if err != nil {
		msg = "chain failed"
	}
	l.Log(Event{
		Type:    EventTypeRun,
		RunID:   runID,
		Chain:   chain,
		Message: msg,
		Err:     err,
		Data:    map[string]any{"elapsed_ms": elapsed.Milliseconds()},
	})
}

func (l *Logger) LogLLM(runID, step string, prompt any, response string) {
	l.Log(Event{
		Type:    EventTypeLLM,
		Debug:   true,
		RunID:   runID,
		Step:    step,
		Message: "model exchange",
		Data: map[string]any{
			"prompt":   prompt,
			"response": response,
		},
	})
}

func (l *Logger) LogBatchRow(row int, chainRef string, err error) {
	msg := "row completed"
	if err != nil {
		msg = "row failed"
	}
	data := map[string]any{
		"row":       row,
		"chain_ref": chainRef,
	}
	// progress of the batch in flight, as counted by Heartbeat
	if phase, task, processed, _ := GetStatus(); phase == PhaseBatch {
		data["table"] = task
		data["processed"] = processed
	}
	l.Log(Event{
		Type:    EventTypeBatchRow,
		Message: msg,
		Err:     err,
		Data:    data,
	})
}

func (l *Logger) LogBatch(tableRef string, total, succeeded, failed int, err error) {
	msg := "batch completed"
	if err != nil {
		msg = "batch halted"
	}
	l.Log(Event{
		Type:    EventTypeBatch,
		Message: msg,
		Err:     err,
		Data: map[string]any{
			"table":     tableRef,
			"total":     total,
			"succeeded": succeeded,
			"failed":    failed,
		},
	})
}
