// Package config loads the web0 configuration file.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the probe configuration. Zero values are replaced by Default's.
type Config struct {
	// Timeout bounds a whole request including reading the body.
	Timeout         time.Duration `yaml:"timeout"`
	UserAgent       string        `yaml:"userAgent"`
	FollowRedirects *bool         `yaml:"followRedirects"`
	MaxRedirects    int           `yaml:"maxRedirects"`
	AllowedURLs     []string      `yaml:"allowedURLs"`
	DisallowedURLs  []string      `yaml:"disallowedURLs"`
	RespectRobots   bool          `yaml:"respectRobots"`
	// TickInterval is how often the UI polls for a finished request.
	TickInterval    time.Duration `yaml:"tickInterval"`
	RandomImageSide int           `yaml:"randomImageSide"`
	Log             Log           `yaml:"log"`
}

// Log configures the log file. Logging is off when File is empty.
type Log struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	follow := true

	return Config{
		Timeout:         30 * time.Second,
		UserAgent:       "web0/0.1",
		FollowRedirects: &follow,
		MaxRedirects:    10,
		AllowedURLs:     []string{},
		DisallowedURLs:  []string{},
		TickInterval:    50 * time.Millisecond,
		RandomImageSide: 640,
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads filename and merges it over Default. An empty filename returns Default.
func Load(filename string) (Config, error) {
	config := Default()
	if filename == "" {
		return config, nil
	}

	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}

	var file Config
	if err := yaml.Unmarshal(configBytes, &file); err != nil {
		return config, fmt.Errorf("parsing %s: %w", filename, err)
	}

	config.merge(file)

	return config, config.Validate()
}

func (c *Config) merge(o Config) {
	if o.Timeout != 0 {
		c.Timeout = o.Timeout
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
	if o.FollowRedirects != nil {
		c.FollowRedirects = o.FollowRedirects
	}
	if o.MaxRedirects != 0 {
		c.MaxRedirects = o.MaxRedirects
	}
	if o.AllowedURLs != nil {
		c.AllowedURLs = o.AllowedURLs
	}
	if o.DisallowedURLs != nil {
		c.DisallowedURLs = o.DisallowedURLs
	}
	if o.RespectRobots {
		c.RespectRobots = true
	}
	if o.TickInterval != 0 {
		c.TickInterval = o.TickInterval
	}
	if o.RandomImageSide != 0 {
		c.RandomImageSide = o.RandomImageSide
	}
	if o.Log.File != "" {
		c.Log.File = o.Log.File
	}
	if o.Log.Level != "" {
		c.Log.Level = o.Log.Level
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	var errs []error

	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if c.MaxRedirects < 0 {
		errs = append(errs, errors.New("maxRedirects must not be negative"))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, errors.New("tickInterval must be positive"))
	}
	if c.RandomImageSide <= 0 {
		errs = append(errs, errors.New("randomImageSide must be positive"))
	}

	return errors.Join(errs...)
}

// Follow reports whether redirects are followed.
func (c Config) Follow() bool {
	return c.FollowRedirects == nil || *c.FollowRedirects
}

// HTTPClient builds the client used by the fetcher.
func (c Config) HTTPClient() *http.Client {
	client := &http.Client{
		Timeout: c.Timeout,
	}

	maxRedirects := c.MaxRedirects
	follow := c.Follow()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if !follow {
			return http.ErrUseLastResponse
		}
		if len(via) > maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}

	return client
}
