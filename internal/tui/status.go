package tui

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/derailed/tview"
)

// LogLevel represents the severity of a status message
type LogLevel int

const (
	LogLevelInfo LogLevel = iota
	LogLevelWarning
	LogLevelError
	LogLevelSuccess
)

const statusTimeout = 5 * time.Second

// StatusBar shows transient messages over a baseline text
type StatusBar struct {
	mu       sync.Mutex
	app      *tview.Application
	view     *tview.TextView
	logger   *log.Logger
	baseline string
	current  string
	timer    *time.Timer
}

// NewStatusBar creates a status bar. app and view may be nil in tests.
func NewStatusBar(app *tview.Application, view *tview.TextView, logger *log.Logger) *StatusBar {
	return &StatusBar{app: app, view: view, logger: logger}
}

// SetBaseline sets the text shown when no message is active
func (s *StatusBar) SetBaseline(text string) {
	s.mu.Lock()
	s.baseline = text
	s.mu.Unlock()
	s.refresh()
}

// HandleError logs err and shows userMsg
func (s *StatusBar) HandleError(err error, userMsg string) {
	if err == nil {
		return
	}
	if s.logger != nil {
		s.logger.Printf("ERROR: %v", err)
	}
	if userMsg == "" {
		userMsg = "An error occurred"
	}
	s.ShowMessage(userMsg, LogLevelError)
}

// ShowInfo shows an info message
func (s *StatusBar) ShowInfo(msg string) { s.ShowMessage(msg, LogLevelInfo) }

// ShowSuccess shows a success message
func (s *StatusBar) ShowSuccess(msg string) { s.ShowMessage(msg, LogLevelSuccess) }

// ShowMessage displays msg until it times out or a newer message replaces it
func (s *StatusBar) ShowMessage(msg string, level LogLevel) {
	if strings.TrimSpace(msg) == "" {
		return
	}
	if s.logger != nil {
		s.logger.Printf("%s: %s", levelToString(level), msg)
	}
	formatted := formatMessage(msg, level)

	s.mu.Lock()
	s.current = formatted
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(statusTimeout, func() { s.clear(formatted) })
	s.mu.Unlock()
	s.refresh()
}

// Text returns what the bar currently displays
func (s *StatusBar) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.textLocked()
}

func (s *StatusBar) textLocked() string {
	if s.current != "" {
		return s.current
	}
	return s.baseline
}

// clear removes msg unless a newer message replaced it
func (s *StatusBar) clear(msg string) {
	s.mu.Lock()
	if s.current != msg {
		s.mu.Unlock()
		return
	}
	s.current = ""
	s.mu.Unlock()
	s.refresh()
}

func (s *StatusBar) refresh() {
	if s.view == nil {
		return
	}
	text := s.Text()
	if s.app == nil {
		s.view.SetText(text)
		return
	}
	s.app.QueueUpdateDraw(func() { s.view.SetText(text) })
}

func formatMessage(msg string, level LogLevel) string {
	var icon string
	switch level {
	case LogLevelInfo:
		icon = "ℹ️"
	case LogLevelWarning:
		icon = "⚠️"
	case LogLevelError:
		icon = "❌"
	case LogLevelSuccess:
		icon = "✅"
	default:
		icon = "•"
	}
	return fmt.Sprintf("%s %s", icon, msg)
}

func levelToString(level LogLevel) string {
	switch level {
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarning:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelSuccess:
		return "SUCCESS"
	default:
		return "UNKNOWN"
	}
}
