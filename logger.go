package nutriguide

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// TransitionLogger is the interface for the reconciler's transition journal.
type TransitionLogger interface {
	LogTransition(t TransitionLog) error
}

// NewTransitionLogFilePath returns a file path based on a cleaned up resolver name to make it easier to tell sessions apart.
func NewTransitionLogFilePath(resolver string) string {
	return fmt.Sprintf(
		"./logs/%d.%s.json",
		time.Now().Unix(),
		strings.ReplaceAll(strings.ToLower(resolver), ":", "_"),
	)
}

// TransitionLog represents a single state change of a reconciler.
type TransitionLog struct {
	Seq       int        `json:"seq"`
	Timestamp time.Time  `json:"timestamp"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Trigger   string     `json:"trigger"`
	Hint      string     `json:"hint,omitempty"`
	Items     []MealItem `json:"items,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// FileTransitionLogger accumulates transitions and writes them as one document on Flush.
type FileTransitionLogger struct {
	mu          sync.Mutex
	transitions []TransitionLog
	writer      io.Writer
}

// NewFileTransitionLogger creates a new file-based transition logger
func NewFileTransitionLogger(writer io.Writer) *FileTransitionLogger {
	return &FileTransitionLogger{
		transitions: make([]TransitionLog, 0),
		writer:      writer,
	}
}

// LogTransition buffers the transition (does not flush immediately)
func (l *FileTransitionLogger) LogTransition(t TransitionLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transitions = append(l.transitions, t)
	return nil
}

// Flush writes all accumulated transitions to the writer
func (l *FileTransitionLogger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"reconciliation_session": map[string]any{
			"timestamp":   time.Now(),
			"transitions": l.transitions,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transition log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write transition log: %w", err)
	}

	l.transitions = l.transitions[:0]
	return nil
}

// NoOpTransitionLogger discards all transitions
type NoOpTransitionLogger struct{}

func NewNoOpTransitionLogger() *NoOpTransitionLogger {
	return &NoOpTransitionLogger{}
}

func (nop *NoOpTransitionLogger) LogTransition(t TransitionLog) error {
	return nil
}

// StdoutTransitionLogger logs each transition as a JSON line (for Lambda/CloudWatch)
type StdoutTransitionLogger struct {
	out io.Writer
}

func NewStdoutTransitionLogger() *StdoutTransitionLogger {
	return &StdoutTransitionLogger{out: os.Stdout}
}

// LogTransition writes the transition as a JSON line
func (l *StdoutTransitionLogger) LogTransition(t TransitionLog) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(l.out, string(data))
	return err
}
