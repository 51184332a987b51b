package application

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/proptest/internal/api"
	"github.com/eugenenazirov/proptest/internal/config"
	"github.com/eugenenazirov/proptest/internal/environment"
	"github.com/eugenenazirov/proptest/internal/settings"
)

// App encapsulates the loaded configuration and the optional HTTP server.
type App struct {
	env      *environment.Environment
	settings *settings.Settings
	handler  *api.Handler
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
}

// New loads every configured source, binds the settings and prepares the
// HTTP server. Any load, resolution or binding error is returned as is.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	files := make([]string, 0, len(cfg.Files))
	for _, f := range cfg.Files {
		files = append(files, locate(f))
	}

	defaultsFile := cfg.DefaultsFile
	if defaultsFile != "" {
		defaultsFile = locate(defaultsFile)
	}

	env, err := environment.New(environment.Options{
		DefaultsFile: defaultsFile,
		Files:        files,
		EnvPrefixes:  cfg.EnvPrefixes,
		System:       cfg.SystemProperties,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	bound, err := settings.Load(env)
	if err != nil {
		return nil, fmt.Errorf("bind configuration: %w", err)
	}

	handler := api.NewHandler(env, bound)
	apiRouter := api.NewRouter(handler, logger,
		api.RateLimit{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
		api.WithLogging(cfg.EnableRequestLogging),
	)

	return &App{
		env:      env,
		settings: bound,
		handler:  handler,
		router:   apiRouter,
		logger:   logger,
		server:   NewServer(cfg, apiRouter),
	}, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Report logs every injected value and bound record at info level.
// Sensitive values are masked.
func (a *App) Report() {
	in := a.settings.Injected
	fromEnv, err := a.env.Get("schooldevops.prop-test.name")
	if err != nil {
		a.logger.Warn("projectNameFromEnv unavailable", zap.Error(err))
	}
	a.logger.Info("injected values",
		zap.String("projectName", in.ProjectName),
		zap.String("projectNameFromEnv", fromEnv),
		zap.String("defaultValue", in.DefaultValue),
		zap.Strings("friends", in.Friends),
		zap.String("javaVersion", in.JavaVersion),
		zap.String("javaVersionWithDefault", in.JavaVersionWithDefault),
		zap.Strings("friendList", in.FriendList),
		zap.Any("cutline", in.Cutline),
		zap.String("dbUrl", settings.Mask("dbUrl", in.DBURL)),
		zap.String("userApiUrl", settings.Mask("userApiUrl", in.UserAPIURL)),
	)

	prop := a.settings.Prop
	a.logger.Info("propValue",
		zap.String("name", prop.Name),
		zap.Strings("friends", prop.Friends),
		zap.Any("cutline2", prop.Cutline2),
	)

	student := a.settings.Student
	a.logger.Info("studentPropValue",
		zap.String("user.name", student.User.Name),
		zap.Int("user.age", student.User.Age),
		zap.String("user.subject", student.User.Subject),
		zap.String("address.postNum", student.Address.PostNum),
		zap.String("address.mainAddress", student.Address.MainAddress),
		zap.String("address.detailAddress", student.Address.DetailAddress),
	)

	db := a.settings.DB
	a.logger.Info("dbPropValue",
		zap.String("url", settings.Mask("url", db.URL)),
		zap.String("dbName", db.DBName),
		zap.String("userName", db.UserName),
		zap.String("password", settings.Mask("password", db.Password)),
	)
}

// Settings returns the bound settings.
func (a *App) Settings() *settings.Settings {
	return a.settings
}

// Environment returns the loaded configuration snapshot.
func (a *App) Environment() *environment.Environment {
	return a.env
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// locate resolves a relative path that does not exist in the working
// directory against the project root. Paths that cannot be found are
// returned unchanged so the file provider reports them.
func locate(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if found, err := resolveProjectPath(path); err == nil {
		return found
	}
	return path
}

// resolveProjectPath locates a file or directory relative to the project root by walking up the directory tree.
func resolveProjectPath(relative string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, relative)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("unable to locate %s", relative)
}
