package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kalambet/smartnotes/internal/config"
	"github.com/kalambet/smartnotes/internal/gateway"
	"github.com/kalambet/smartnotes/internal/session"
)

// app is what every command needs: config, a logger and a gateway client
// built from the backend address read once at startup.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	gw      *gateway.Client
	closeFn func()
}

var loadConfig = config.Load

// newApp loads configuration and wires the logger and gateway. Logs go to
// logOut unless log.file is set.
func newApp(logOut io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger, closeFn := newLogger(cfg.Log, logOut)
	return &app{
		cfg:     cfg,
		logger:  logger,
		gw:      newGateway(cfg.Backend, logger),
		closeFn: closeFn,
	}, nil
}

func (a *app) Close() {
	a.closeFn()
}

// session creates a session over the app's gateway with the configured
// provider, banner and upload settings.
func (a *app) session(opts ...session.Option) *session.Session {
	return newSession(a.cfg, a.gw, a.logger, opts...)
}

func newGateway(cfg config.BackendConfig, logger *slog.Logger) *gateway.Client {
	return gateway.New(cfg.BaseURL,
		gateway.WithToken(cfg.APIToken),
		gateway.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		gateway.WithLogger(logger),
	)
}

func newSession(cfg config.Config, gw session.Gateway, logger *slog.Logger, opts ...session.Option) *session.Session {
	base := []session.Option{
		session.WithProvider(cfg.Query.DefaultProvider),
		session.WithTextUploadName(cfg.Upload.TextName),
		session.WithRecentLimit(cfg.Upload.RecentLimit),
		session.WithLogger(logger),
	}
	return session.New(gw, append(base, opts...)...)
}

// newLogger builds the process logger. With log.file set, output goes to a
// rotating file instead of w.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, func()) {
	level := slog.LevelInfo
	if strings.EqualFold(cfg.Level, "debug") {
		level = slog.LevelDebug
	}

	closeFn := func() {}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		w = rotator
		closeFn = func() { rotator.Close() }
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeFn
}
