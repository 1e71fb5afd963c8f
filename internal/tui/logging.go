package tui

import (
	"log"
	"os"
	"path/filepath"

	"github.com/ajramos/convview/internal/config"
)

// initLogger opens the log file when no logger was passed in. LogFile from the config wins
// over ~/.config/convview/convview.log.
func (a *App) initLogger() {
	if a.logger != nil {
		return
	}
	path := a.Config.LogFile
	if path == "" {
		dir := config.DefaultLogDir()
		if dir == "" {
			return
		}
		path = filepath.Join(dir, "convview.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
		a.logFile = f
		a.logger = log.New(f, "[convview] ", log.LstdFlags|log.Lmicroseconds)
	}
}

// closeLogger closes the log file if opened
func (a *App) closeLogger() {
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}
