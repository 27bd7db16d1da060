package project

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/newhook/pipereport/internal/logging"
	"github.com/newhook/pipereport/internal/logparser"
)

//go:embed templates/config.tmpl
var configTemplateText string

// Config represents the project configuration stored in .pipereport/config.toml.
type Config struct {
	Project ProjectConfig `toml:"project"`
	Jenkins JenkinsConfig `toml:"jenkins"`
	Extract ExtractConfig `toml:"extract"`
	Cache   CacheConfig   `toml:"cache"`
	Watch   WatchConfig   `toml:"watch"`
	Log     LogConfig     `toml:"log"`
}

// ProjectConfig contains project metadata.
type ProjectConfig struct {
	Name      string    `toml:"name"`
	CreatedAt time.Time `toml:"created_at"`
}

// JenkinsConfig describes the Jenkins server console text is fetched from.
type JenkinsConfig struct {
	URL               string   `toml:"url"`
	User              string   `toml:"user"`
	TokenEnv          string   `toml:"token_env"`
	RequestsPerSecond *float64 `toml:"requests_per_second"`
	TimeoutSeconds    *int     `toml:"timeout_seconds"`
	Concurrency       *int     `toml:"concurrency"`
}

// GetTokenEnv returns the token environment variable name.
// Defaults to "JENKINS_TOKEN".
func (j *JenkinsConfig) GetTokenEnv() string {
	if j.TokenEnv == "" {
		return "JENKINS_TOKEN"
	}
	return j.TokenEnv
}

// Token reads the API token from the configured environment variable.
func (j *JenkinsConfig) Token() string {
	return os.Getenv(j.GetTokenEnv())
}

// GetRequestsPerSecond returns the fetch rate limit. Defaults to 2.
func (j *JenkinsConfig) GetRequestsPerSecond() float64 {
	if j.RequestsPerSecond != nil && *j.RequestsPerSecond > 0 {
		return *j.RequestsPerSecond
	}
	return 2
}

// GetTimeout returns the per-request timeout. Defaults to 30 seconds.
func (j *JenkinsConfig) GetTimeout() time.Duration {
	if j.TimeoutSeconds != nil && *j.TimeoutSeconds > 0 {
		return time.Duration(*j.TimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

// GetConcurrency returns how many runs are processed at once. Defaults to 4.
func (j *JenkinsConfig) GetConcurrency() int {
	if j.Concurrency != nil && *j.Concurrency > 0 {
		return *j.Concurrency
	}
	return 4
}

// ExtractConfig controls the excerpt extraction.
type ExtractConfig struct {
	Context         *int `toml:"context"`
	StripANSI       bool `toml:"strip_ansi"`
	StripTimestamps bool `toml:"strip_timestamps"`
}

// GetContext returns the context radius. Defaults to logparser.DefaultRadius.
func (e *ExtractConfig) GetContext() int {
	if e.Context == nil || *e.Context < 0 {
		return logparser.DefaultRadius
	}
	return *e.Context
}

// Options converts the config into extraction options.
func (e *ExtractConfig) Options() []logparser.Option {
	return []logparser.Option{
		logparser.WithRadius(e.GetContext()),
		logparser.WithStripANSI(e.StripANSI),
		logparser.WithStripTimestamps(e.StripTimestamps),
	}
}

// CacheConfig controls the console text cache.
type CacheConfig struct {
	TTLMinutes *int `toml:"ttl_minutes"`
}

// GetTTL returns the cache TTL. Defaults to 30 minutes.
func (c *CacheConfig) GetTTL() time.Duration {
	if c.TTLMinutes != nil && *c.TTLMinutes > 0 {
		return time.Duration(*c.TTLMinutes) * time.Minute
	}
	return 30 * time.Minute
}

// WatchConfig controls "pipereport watch".
type WatchConfig struct {
	Pattern    string `toml:"pattern"`
	DebounceMS *int   `toml:"debounce_ms"`
	OutputDir  string `toml:"output_dir"`
}

// GetPattern returns the file glob. Defaults to "*.log".
func (w *WatchConfig) GetPattern() string {
	if w.Pattern == "" {
		return "*.log"
	}
	return w.Pattern
}

// GetDebounce returns the debounce window. Defaults to 250ms.
func (w *WatchConfig) GetDebounce() time.Duration {
	if w.DebounceMS != nil && *w.DebounceMS > 0 {
		return time.Duration(*w.DebounceMS) * time.Millisecond
	}
	return 250 * time.Millisecond
}

// LogConfig controls the debug log.
type LogConfig struct {
	Level string `toml:"level"`
}

// GetLevel returns the slog level. Defaults to info.
func (l *LogConfig) GetLevel() slog.Level {
	if l.Level == "" {
		return slog.LevelInfo
	}
	return logging.ParseLevel(l.Level)
}

// LoadConfig reads and parses a config.toml file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes the config to path.
func (c *Config) SaveConfig(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// SaveDocumentedConfig writes a commented config to path.
func (c *Config) SaveDocumentedConfig(path string) error {
	return os.WriteFile(path, []byte(c.GenerateDocumentedConfig()), 0600)
}

type configTemplateData struct {
	ProjectName string
	CreatedAt   string
	JenkinsURL  string
	JenkinsUser string
}

// tomlString quotes s as a TOML basic string.
func tomlString(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}

var configTemplate = template.Must(template.New("config").Funcs(template.FuncMap{
	"tomlString": tomlString,
}).Parse(configTemplateText))

// GenerateDocumentedConfig renders the config with every option documented.
func (c *Config) GenerateDocumentedConfig() string {
	data := configTemplateData{
		ProjectName: c.Project.Name,
		CreatedAt:   c.Project.CreatedAt.Format(time.RFC3339),
		JenkinsURL:  c.Jenkins.URL,
		JenkinsUser: c.Jenkins.User,
	}

	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, data); err != nil {
		return fmt.Sprintf("[project]\nname = %s\ncreated_at = %s\n[jenkins]\nurl = %s\n",
			tomlString(c.Project.Name), data.CreatedAt, tomlString(c.Jenkins.URL))
	}
	return buf.String()
}
