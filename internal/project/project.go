package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/newhook/pipereport/internal/db"
	"github.com/newhook/pipereport/internal/logging"
)

const (
	// ConfigDir is the directory name for project configuration.
	ConfigDir = logging.ConfigDir
	// ConfigFile is the name of the project config file.
	ConfigFile = "config.toml"
	// ReportDB is the name of the run record database file.
	ReportDB = "report.db"
)

// Project is a directory holding a pipereport configuration and database.
type Project struct {
	Root   string
	Config *Config
	DB     *db.DB
}

// Find finds a project from a flag value or current directory.
// If flagValue is non-empty, uses that path; otherwise uses cwd.
func Find(ctx context.Context, flagValue string) (*Project, error) {
	if flagValue != "" {
		return find(ctx, flagValue)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return find(ctx, cwd)
}

// find walks up from startDir looking for a config directory.
func find(ctx context.Context, startDir string) (*Project, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, ConfigDir, ConfigFile)); err == nil {
			return load(ctx, dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("no project found (no %s directory)", ConfigDir)
		}
		dir = parent
	}
}

func load(ctx context.Context, root string) (*Project, error) {
	configPath := filepath.Join(root, ConfigDir, ConfigFile)
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	if err := logging.Init(root, cfg.Log.GetLevel()); err != nil {
		logging.Warn("failed to initialize logging", "error", err)
	}

	database, err := db.OpenPath(ctx, filepath.Join(root, ConfigDir, ReportDB))
	if err != nil {
		return nil, fmt.Errorf("failed to open report database: %w", err)
	}

	return &Project{
		Root:   root,
		Config: cfg,
		DB:     database,
	}, nil
}

// Create initializes a new project in dir.
func Create(ctx context.Context, dir, jenkinsURL string) (*Project, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	configDir := filepath.Join(absDir, ConfigDir)
	if _, err := os.Stat(filepath.Join(configDir, ConfigFile)); err == nil {
		return nil, fmt.Errorf("project already exists at %s", absDir)
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create project directory: %w", err)
	}

	cfg := &Config{
		Project: ProjectConfig{
			Name:      filepath.Base(absDir),
			CreatedAt: time.Now().UTC().Truncate(time.Second),
		},
		Jenkins: JenkinsConfig{URL: jenkinsURL},
	}
	if err := cfg.SaveDocumentedConfig(filepath.Join(configDir, ConfigFile)); err != nil {
		return nil, fmt.Errorf("failed to write config: %w", err)
	}

	return load(ctx, absDir)
}

// Close closes the project database and log file.
func (p *Project) Close() error {
	var err error
	if p.DB != nil {
		err = p.DB.Close()
	}
	if cerr := logging.Close(); err == nil {
		err = cerr
	}
	return err
}
