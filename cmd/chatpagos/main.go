package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ofarias/chatpagos/internal/config"
	"github.com/ofarias/chatpagos/internal/logger"
	"github.com/ofarias/chatpagos/internal/service"
	"github.com/ofarias/chatpagos/internal/store"
	"github.com/ofarias/chatpagos/internal/store/sqlite"
	"github.com/ofarias/chatpagos/internal/store/xlsx"
	"github.com/ofarias/chatpagos/internal/tui"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, closeLog, err := openLogger(cfg)
	if err != nil {
		log.Fatalf("open log: %v", err)
	}
	defer closeLog()

	if cfg.Exports.Dir != "" {
		_ = os.MkdirAll(cfg.Exports.Dir, 0o755)
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	proc := service.New(st, zl)
	zl.Info().Str("backend", cfg.Storage.Backend).Str("path", cfg.Storage.Path).Msg("chatpagos starting")

	p := tea.NewProgram(tui.New(ctx, cfg, proc, zl), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

// openLogger routes logs to the configured file so they never write over
// the TUI. An empty log.file falls back to stderr.
func openLogger(cfg config.Config) (zerolog.Logger, func(), error) {
	if cfg.Log.File == "" {
		return logger.New(cfg.Log.Debug), func() {}, nil
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}
	return logger.NewWithWriter(f, cfg.Log.Debug), func() { _ = f.Close() }, nil
}

func openStore(cfg config.Config) (store.Store, error) {
	if dir := filepath.Dir(cfg.Storage.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir storage dir: %w", err)
		}
	}
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		return sqlite.Open(cfg.Storage.Path)
	case config.BackendXLSX:
		return xlsx.Open(cfg.Storage.Path), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
