package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/OpenPeeDeeP/xdg"
	"github.com/vipnode/locomux/loco"
	"github.com/vipnode/locomux/session"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

var dirs = xdg.New("vipnode", "locomux")

// Config is read from config.yaml in the XDG config dir, or from --config.
// Flags override it.
type Config struct {
	Addr      string        `yaml:"addr"`
	Transport string        `yaml:"transport"`
	Timeout   time.Duration `yaml:"timeout"`
	Metrics   string        `yaml:"metrics"`

	Session struct {
		QueueSize      int     `yaml:"queue_size"`
		ReadErrorRate  float64 `yaml:"read_error_rate"`
		ReadErrorBurst int     `yaml:"read_error_burst"`
	} `yaml:"session"`

	MaxBodyBytes uint32 `yaml:"max_body_bytes"`
	JournalDir   string `yaml:"journal_dir"`
}

// DefaultConfig is used for anything the config file leaves out.
func DefaultConfig() Config {
	var c Config
	c.Transport = "tcp"
	c.Timeout = 10 * time.Second
	def := session.DefaultConfig()
	c.Session.QueueSize = def.QueueSize
	c.Session.ReadErrorRate = float64(def.ReadErrorRate)
	c.Session.ReadErrorBurst = def.ReadErrorBurst
	c.MaxBodyBytes = loco.DefaultLimits().MaxBodyBytes
	return c
}

// defaultConfigPath is where loadConfig looks when no path is given.
func defaultConfigPath() string {
	return filepath.Join(dirs.ConfigHome(), "config.yaml")
}

// loadConfig reads path over DefaultConfig. A missing file is only an error
// when the path was given explicitly.
func loadConfig(path string) (Config, error) {
	c := DefaultConfig()
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
	}
	b, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) && !explicit {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, ErrExplain{err, fmt.Sprintf("Failed to parse config file %q.", path)}
	}
	logger.Debugf("Loaded config: %s", path)
	return c, nil
}

// override replaces fields with the non-zero flag values.
func (c *Config) override(addr, transport string, timeout time.Duration) {
	if addr != "" {
		c.Addr = addr
	}
	if transport != "" {
		c.Transport = transport
	}
	if timeout != 0 {
		c.Timeout = timeout
	}
}

func (c Config) sessionConfig(metrics *session.Metrics) session.Config {
	return session.Config{
		QueueSize:      c.Session.QueueSize,
		ReadErrorRate:  rate.Limit(c.Session.ReadErrorRate),
		ReadErrorBurst: c.Session.ReadErrorBurst,
		DrainTimeout:   session.DefaultConfig().DrainTimeout,
		Metrics:        metrics,
	}
}

func (c Config) codec() loco.Codec {
	return loco.Codec{Limits: loco.Limits{MaxBodyBytes: c.MaxBodyBytes}}
}

// findDataDir returns a valid data dir, will create it if it doesn't
// exist.
func findDataDir(overridePath string) (string, error) {
	path := overridePath
	if path == "" {
		path = dirs.DataHome()
	}
	err := os.MkdirAll(path, 0700)
	return path, err
}
