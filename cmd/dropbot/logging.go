package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/84hero/nft-dropbot/pkg/config"
	"github.com/ethereum/go-ethereum/log"
)

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "", "info":
		return log.LevelInfo, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit", "critical":
		return log.LevelCrit, nil
	default:
		return log.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func newLogHandler(cfg config.LogConfig, w io.Writer) (slog.Handler, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(cfg.Format, "json") {
		return log.JSONHandlerWithLevel(w, level), nil
	}
	return log.NewTerminalHandlerWithLevel(w, level, true), nil
}

func setupLogger(cfg config.LogConfig, w io.Writer) error {
	h, err := newLogHandler(cfg, w)
	if err != nil {
		return err
	}
	log.SetDefault(log.NewLogger(h))
	return nil
}
