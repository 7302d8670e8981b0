// Package config provides configuration loading and management for rewrite-sync.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/rewrite-sync/internal/httpclient"
	"github.com/stacklok/rewrite-sync/internal/registry"
	"github.com/stacklok/rewrite-sync/internal/telemetry"
)

// EnvPrefix is the prefix of environment variables that override configuration
const EnvPrefix = "REWRITE_SYNC"

const (
	// DefaultRepoPath is the working copy the documents are published into
	DefaultRepoPath = "ad"

	// DefaultRewriteDir holds the merged document, relative to the repository
	DefaultRewriteDir = "rewrite"

	// DefaultRulesDir holds the cache entries, relative to the repository
	DefaultRulesDir = "rules"

	// DefaultOutputFile is the merged document file name
	DefaultOutputFile = "ad_rewrite.conf"

	// DefaultSummaryFile is the summary document, relative to the repository
	DefaultSummaryFile = "README-rewrite.md"

	// DefaultStateDir holds run status outside the published repository
	DefaultStateDir = ".rewrite-sync"

	// DefaultLockFile guards against overlapping runs
	DefaultLockFile = ".rewrite-sync.lock"

	// DefaultTitle is the first line of the merged and summary documents
	DefaultTitle = "广告拦截重写规则合集"

	// DefaultUpdatedLabel precedes the timestamp in the provenance header
	DefaultUpdatedLabel = "更新时间："

	// DefaultSourcesLabel introduces the source list in the provenance header
	DefaultSourcesLabel = "合并自以下源："

	// DefaultRemote is the remote pushed to after commit
	DefaultRemote = "origin"

	// DefaultCommitPrefix precedes the timestamp in commit messages
	DefaultCommitPrefix = "Update rewrite rules: "

	// DefaultAuthorName is the commit author name
	DefaultAuthorName = "rewrite-sync"

	// DefaultAuthorEmail is the commit author email
	DefaultAuthorEmail = "rewrite-sync@localhost"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
	env  bool
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// WithEnvOverrides applies REWRITE_SYNC_* environment variables on top of the file
func WithEnvOverrides() Option {
	return func(cfg *loaderConfig) error {
		cfg.env = true
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// RepoPath is the local git working copy the documents are written into
	RepoPath string `yaml:"repoPath,omitempty"`

	// RewriteDir is the directory of the merged document, relative to RepoPath
	RewriteDir string `yaml:"rewriteDir,omitempty"`

	// RulesDir is the cache directory, relative to RepoPath
	RulesDir string `yaml:"rulesDir,omitempty"`

	// OutputFile is the merged document file name inside RewriteDir
	OutputFile string `yaml:"outputFile,omitempty"`

	// SummaryFile is the summary document path, relative to RepoPath
	SummaryFile string `yaml:"summaryFile,omitempty"`

	// StateDir holds status.json. It is not published.
	StateDir string `yaml:"stateDir,omitempty"`

	// LockFile is the advisory lock taken for the duration of a run
	LockFile string `yaml:"lockFile,omitempty"`

	// Sources lists the rule sources in merge order. The built-in table is
	// used when empty.
	Sources []SourceConfig `yaml:"sources,omitempty"`

	// Filter selects a subset of the sources for every run
	Filter *FilterConfig `yaml:"filter,omitempty"`

	Fetch     FetchConfig       `yaml:"fetch,omitempty"`
	Output    OutputConfig      `yaml:"output,omitempty"`
	Publish   PublishConfig     `yaml:"publish,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// SourceConfig defines a single rule source
type SourceConfig struct {
	Name  string `yaml:"name"`
	URL   string `yaml:"url"`
	Class string `yaml:"class"`
}

// FilterConfig selects sources by name and class
type FilterConfig struct {
	Names   *NameFilterConfig  `yaml:"names,omitempty"`
	Classes *ClassFilterConfig `yaml:"classes,omitempty"`
}

// NameFilterConfig holds glob patterns matched against source names
type NameFilterConfig struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// ClassFilterConfig holds source classes to include or exclude
type ClassFilterConfig struct {
	Include []string `yaml:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// FetchConfig defines how sources are downloaded
type FetchConfig struct {
	// Timeout bounds each request (e.g., "30s")
	Timeout string `yaml:"timeout,omitempty"`

	// Concurrency limits parallel fetches. Zero means one per source.
	Concurrency int `yaml:"concurrency,omitempty"`

	// InsecureCacheable disables certificate verification for cacheable
	// sources. Defaults to true.
	InsecureCacheable *bool `yaml:"insecureCacheable,omitempty"`

	// UserAgent overrides the browser user agent sent to every source
	UserAgent string `yaml:"userAgent,omitempty"`
}

// OutputConfig defines the labels of the generated documents
type OutputConfig struct {
	Title        string `yaml:"title,omitempty"`
	UpdatedLabel string `yaml:"updatedLabel,omitempty"`
	SourcesLabel string `yaml:"sourcesLabel,omitempty"`
}

// PublishConfig defines how the documents are committed and pushed
type PublishConfig struct {
	// Commit enables the commit step. Defaults to true.
	Commit *bool `yaml:"commit,omitempty"`

	// Push enables the push step. Defaults to true.
	Push *bool `yaml:"push,omitempty"`

	Remote       string `yaml:"remote,omitempty"`
	CommitPrefix string `yaml:"commitPrefix,omitempty"`
	AuthorName   string `yaml:"authorName,omitempty"`
	AuthorEmail  string `yaml:"authorEmail,omitempty"`
}

// LoadConfig loads and parses configuration. Without a path the defaults are
// returned, which reproduce the built-in source table and layout.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	var config Config
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if loaderCfg.env {
		applyEnvOverrides(&config, newEnvViper())
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func newEnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func applyEnvOverrides(c *Config, v *viper.Viper) {
	overrideString(v, "REPO_PATH", &c.RepoPath)
	overrideString(v, "RULES_DIR", &c.RulesDir)
	overrideString(v, "STATE_DIR", &c.StateDir)
	overrideString(v, "LOCK_FILE", &c.LockFile)
	overrideString(v, "PUBLISH_REMOTE", &c.Publish.Remote)
	overrideBool(v, "PUBLISH_COMMIT", &c.Publish.Commit)
	overrideBool(v, "PUBLISH_PUSH", &c.Publish.Push)
}

func overrideString(v *viper.Viper, key string, dst *string) {
	if s := v.GetString(key); s != "" {
		*dst = s
	}
}

func overrideBool(v *viper.Viper, key string, dst **bool) {
	if v.GetString(key) == "" {
		return
	}
	b := v.GetBool(key)
	*dst = &b
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	for _, p := range []struct {
		field string
		value string
	}{
		{"rewriteDir", c.RewriteDir},
		{"rulesDir", c.RulesDir},
		{"outputFile", c.OutputFile},
		{"summaryFile", c.SummaryFile},
	} {
		if p.value != "" && !filepath.IsLocal(p.value) {
			return fmt.Errorf("%s must be a relative path inside the repository: %s", p.field, p.value)
		}
	}

	if c.Fetch.Timeout != "" {
		d, err := time.ParseDuration(c.Fetch.Timeout)
		if err != nil {
			return fmt.Errorf("fetch.timeout must be a valid duration (e.g., '30s', '1m'): %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("fetch.timeout must be positive, got %s", c.Fetch.Timeout)
		}
	}

	if c.Fetch.Concurrency < 0 {
		return fmt.Errorf("fetch.concurrency must not be negative, got %d", c.Fetch.Concurrency)
	}

	if c.Publish.Remote != "" && strings.ContainsAny(c.Publish.Remote, " \t\n") {
		return fmt.Errorf("publish.remote must not contain whitespace: %q", c.Publish.Remote)
	}

	if _, err := c.Registry(); err != nil {
		return err
	}

	if err := c.Filter.validate(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func (f *FilterConfig) validate() error {
	if f == nil {
		return nil
	}

	if f.Names != nil {
		for _, pattern := range slices.Concat(f.Names.Include, f.Names.Exclude) {
			if _, err := glob.Compile(pattern); err != nil {
				return fmt.Errorf("invalid name pattern %q: %w", pattern, err)
			}
		}
	}

	if f.Classes != nil {
		for _, class := range slices.Concat(f.Classes.Include, f.Classes.Exclude) {
			if !registry.Class(class).Valid() {
				return fmt.Errorf("unknown class %q", class)
			}
		}
	}
	return nil
}

// Registry builds the source registry from the configured sources, or the
// built-in table when none are configured
func (c *Config) Registry() (*registry.Registry, error) {
	if len(c.Sources) == 0 {
		return registry.Default(), nil
	}

	descriptors := make([]registry.SourceDescriptor, 0, len(c.Sources))
	for _, s := range c.Sources {
		descriptors = append(descriptors, registry.SourceDescriptor{
			Name:  s.Name,
			URL:   s.URL,
			Class: registry.Class(s.Class),
		})
	}
	return registry.New(descriptors...)
}

// GetRepoPath returns the repository path, using "ad" if not specified
func (c *Config) GetRepoPath() string {
	return orDefault(c.RepoPath, DefaultRepoPath)
}

// RewritePath returns the directory that holds the merged document
func (c *Config) RewritePath() string {
	return filepath.Join(c.GetRepoPath(), orDefault(c.RewriteDir, DefaultRewriteDir))
}

// RulesPath returns the cache directory
func (c *Config) RulesPath() string {
	return filepath.Join(c.GetRepoPath(), orDefault(c.RulesDir, DefaultRulesDir))
}

// OutputPath returns the path of the merged document
func (c *Config) OutputPath() string {
	return filepath.Join(c.RewritePath(), orDefault(c.OutputFile, DefaultOutputFile))
}

// SummaryPath returns the path of the summary document
func (c *Config) SummaryPath() string {
	return filepath.Join(c.GetRepoPath(), orDefault(c.SummaryFile, DefaultSummaryFile))
}

// StatusPath returns the path of the run status file
func (c *Config) StatusPath() string {
	return filepath.Join(orDefault(c.StateDir, DefaultStateDir), "status.json")
}

// GetLockFile returns the lock file path
func (c *Config) GetLockFile() string {
	return orDefault(c.LockFile, DefaultLockFile)
}

// GetTimeout returns the per-request timeout
func (c *FetchConfig) GetTimeout() time.Duration {
	if c.Timeout == "" {
		return httpclient.DefaultTimeout
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return httpclient.DefaultTimeout
	}
	return d
}

// GetInsecureCacheable reports whether cacheable sources skip certificate verification
func (c *FetchConfig) GetInsecureCacheable() bool {
	return boolOrDefault(c.InsecureCacheable, true)
}

// GetUserAgent returns the user agent sent to every source
func (c *FetchConfig) GetUserAgent() string {
	return orDefault(c.UserAgent, httpclient.BrowserUserAgent)
}

// GetTitle returns the document title
func (c *OutputConfig) GetTitle() string {
	return orDefault(c.Title, DefaultTitle)
}

// GetUpdatedLabel returns the label in front of the timestamp
func (c *OutputConfig) GetUpdatedLabel() string {
	return orDefault(c.UpdatedLabel, DefaultUpdatedLabel)
}

// GetSourcesLabel returns the label above the source list
func (c *OutputConfig) GetSourcesLabel() string {
	return orDefault(c.SourcesLabel, DefaultSourcesLabel)
}

// CommitEnabled reports whether publishing commits the changes
func (c *PublishConfig) CommitEnabled() bool {
	return boolOrDefault(c.Commit, true)
}

// PushEnabled reports whether publishing pushes the commit
func (c *PublishConfig) PushEnabled() bool {
	return boolOrDefault(c.Push, true)
}

// GetRemote returns the remote name
func (c *PublishConfig) GetRemote() string {
	return orDefault(c.Remote, DefaultRemote)
}

// GetCommitPrefix returns the commit message prefix
func (c *PublishConfig) GetCommitPrefix() string {
	return orDefault(c.CommitPrefix, DefaultCommitPrefix)
}

// GetAuthorName returns the commit author name
func (c *PublishConfig) GetAuthorName() string {
	return orDefault(c.AuthorName, DefaultAuthorName)
}

// GetAuthorEmail returns the commit author email
func (c *PublishConfig) GetAuthorEmail() string {
	return orDefault(c.AuthorEmail, DefaultAuthorEmail)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
