package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/0xADE/ade-launchd/internal/logging"
)

const defaultConfigFile = "~/.config/ade/launchd.yaml"

var (
	globalConfig *config
	once         sync.Once
)

type config struct {
	static  env
	dynamic file
	path    string
	watcher *fsnotify.Watcher
}

type (
	env struct {
		Path        string `envconfig:"PATH"`
		UnixSocket  string `envconfig:"ADE_LAUNCHD_SOCK"`
		CacheDir    string `envconfig:"ADE_LAUNCHD_CACHE_DIR"`
		ConfigFile  string `envconfig:"ADE_LAUNCHD_CONFIG"`
		Workers     int    `envconfig:"ADE_LAUNCHD_WORKERS" default:"4"`
		MetricsAddr string `envconfig:"ADE_LAUNCHD_METRICS_ADDR"`
		Lang        string `envconfig:"ADE_LAUNCHD_LANG"`
		ScanPath    bool   `envconfig:"ADE_LAUNCHD_SCAN_PATH" default:"false"`
		Watch       bool   `envconfig:"ADE_LAUNCHD_WATCH" default:"false"`
	}
	file struct {
		sync.RWMutex
		settings Settings
	}
)

// Settings is the user-editable part of the configuration, read from
// ~/.config/ade/launchd.yaml.
type Settings struct {
	IconSize     int           `yaml:"icon_size"`
	MaxResults   int           `yaml:"max_results"`
	EnableCache  bool          `yaml:"enable_cache"`
	PollInterval time.Duration `yaml:"poll_interval"` // ade-launch status --wait

	// Row and header icon sizes for graphical front ends. The daemon caches
	// icons at IconSize only; ade-launch config reports these.
	SearchIconSize  int `yaml:"search_icon_size"`
	ProgramIconSize int `yaml:"program_icon_size"`

	// Declared for compatibility with existing config files. Scanning and
	// result ordering do not consume them.
	ExtraIndexPaths []string `yaml:"extra_index_paths"`
	ExcludePaths    []string `yaml:"exclude_paths"`
	InitialSort     string   `yaml:"initial_sort"`
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() Settings {
	return Settings{
		SearchIconSize:  18,
		ProgramIconSize: 42,
		IconSize:        48,
		MaxResults:      10,
		EnableCache:     true,
		PollInterval:    100 * time.Millisecond,
		InitialSort:     "alphabetical",
	}
}

// ParseSettings decodes YAML on top of DefaultSettings. Keys missing from
// data keep their defaults; non-positive sizes are reset to defaults.
func ParseSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to parse settings: %w", err)
	}
	d := DefaultSettings()
	if s.SearchIconSize <= 0 {
		s.SearchIconSize = d.SearchIconSize
	}
	if s.ProgramIconSize <= 0 {
		s.ProgramIconSize = d.ProgramIconSize
	}
	if s.IconSize <= 0 {
		s.IconSize = d.IconSize
	}
	if s.MaxResults <= 0 {
		s.MaxResults = d.MaxResults
	}
	if s.PollInterval <= 0 {
		s.PollInterval = d.PollInterval
	}
	if s.InitialSort == "" {
		s.InitialSort = d.InitialSort
	}
	return s, nil
}

// LoadSettings reads the settings file named by ADE_LAUNCHD_CONFIG, or the
// default location, without starting a watcher. A missing file yields
// DefaultSettings; a broken one yields DefaultSettings and the error.
func LoadSettings() (Settings, error) {
	var e struct {
		ConfigFile string `envconfig:"ADE_LAUNCHD_CONFIG"`
	}
	if err := envconfig.Process("", &e); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to process environment: %w", err)
	}
	path := defaultConfigFile
	if e.ConfigFile != "" {
		path = e.ConfigFile
	}
	return readSettings(expandPath(path))
}

func readSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return DefaultSettings(), err
	}
	return ParseSettings(data)
}

// Init initializes and loads configuration
func Init() error {
	var err error
	once.Do(func() {
		globalConfig, err = load()
		if err != nil {
			return
		}
		err = globalConfig.setupWatcher()
	})
	return err
}

// Run starts the configuration watcher loop
func Run() error {
	if globalConfig == nil {
		if err := Init(); err != nil {
			return err
		}
	}
	if globalConfig.watcher == nil {
		return errors.New("config watcher not initialized")
	}

	go globalConfig.watchLoop()
	return nil
}

// Get returns the global config instance
func Get() *config {
	if globalConfig == nil {
		if err := Init(); err != nil {
			logging.Warn("config init: %v", err)
		}
	}
	return globalConfig
}

func load() (*config, error) {
	c := &config{}
	c.dynamic.settings = DefaultSettings()

	if err := envconfig.Process("", &c.static); err != nil {
		return c, fmt.Errorf("failed to process environment: %w", err)
	}

	if c.static.UnixSocket == "" {
		currentUser, err := user.Current()
		if err != nil {
			return c, fmt.Errorf("failed to get current user: %w", err)
		}
		c.static.UnixSocket = fmt.Sprintf("/tmp/ade-%s/launchd", currentUser.Uid)
	}
	c.static.UnixSocket = expandPath(c.static.UnixSocket)

	if c.static.CacheDir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return c, fmt.Errorf("failed to get user cache directory: %w", err)
		}
		c.static.CacheDir = filepath.Join(cacheDir, "ade")
	}
	c.static.CacheDir = expandPath(c.static.CacheDir)

	c.path = defaultConfigFile
	if c.static.ConfigFile != "" {
		c.path = c.static.ConfigFile
	}
	c.path = expandPath(c.path)

	if err := c.loadFile(); err != nil {
		// A broken settings file must not keep the daemon down.
		logging.Warn("Error loading %s: %v", c.path, err)
	}
	return c, nil
}

func (c *config) loadFile() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	settings, err := ParseSettings(data)
	if err != nil {
		return err
	}

	c.dynamic.Lock()
	c.dynamic.settings = settings
	c.dynamic.Unlock()
	return nil
}

func (c *config) setupWatcher() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory so that editors replacing the file are noticed.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	c.watcher = watcher
	return nil
}

func (c *config) watchLoop() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Name == c.path && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := c.loadFile(); err != nil {
					logging.Error("Error reloading config: %v", err)
					continue
				}
				logging.Info("Reloaded %s", c.path)
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Config watcher error: %v", err)
		}
	}
}

// Settings returns a copy of the current file settings.
func (c *config) Settings() Settings {
	c.dynamic.RLock()
	defer c.dynamic.RUnlock()
	s := c.dynamic.settings
	s.ExtraIndexPaths = append([]string(nil), s.ExtraIndexPaths...)
	s.ExcludePaths = append([]string(nil), s.ExcludePaths...)
	return s
}

// PathDirs returns the non-empty entries of $PATH.
func (c *config) PathDirs() []string {
	paths := strings.Split(c.static.Path, ":")
	filtered := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			filtered = append(filtered, expandPath(p))
		}
	}
	return filtered
}

// UnixSocket returns the Unix socket path
func (c *config) UnixSocket() string {
	return c.static.UnixSocket
}

// CacheDir returns the directory holding the index snapshot, icons and run index.
func (c *config) CacheDir() string {
	return c.static.CacheDir
}

// SnapshotPath returns the path of the persisted index snapshot.
func (c *config) SnapshotPath() string {
	return filepath.Join(c.static.CacheDir, "launchd-index.json")
}

// IconDir returns the icon cache directory.
func (c *config) IconDir() string {
	return filepath.Join(c.static.CacheDir, "icons")
}

// Workers returns the number of icon extraction workers
func (c *config) Workers() int {
	if c.static.Workers <= 0 {
		return 4
	}
	return c.static.Workers
}

// MetricsAddr returns the listen address for metrics, empty when disabled.
func (c *config) MetricsAddr() string {
	return c.static.MetricsAddr
}

// Lang returns the preferred locale for localized shortcut names.
func (c *config) Lang() string {
	return c.static.Lang
}

// ScanPath reports whether $PATH directories are indexed.
func (c *config) ScanPath() bool {
	return c.static.ScanPath
}

// Watch reports whether application directories are watched for changes.
func (c *config) Watch() bool {
	return c.static.Watch
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return strings.Replace(path, "~", home, 1)
	}
	return path
}
