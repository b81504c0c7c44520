package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/signage-agent/internal/constants"
	"github.com/benmeehan/signage-agent/internal/materializer"
	"github.com/benmeehan/signage-agent/internal/metrics_collectors"
	"github.com/benmeehan/signage-agent/pkg/file"
	"github.com/benmeehan/signage-agent/pkg/kvstore"
)

// Config represents the structure of the configuration file.
type Config struct {
	Log LogConfig `yaml:"log"`

	Storage struct {
		Driver string `yaml:"driver"` // "file" or "sqlite"
		Path   string `yaml:"path"`   // Path to the key-value store
	} `yaml:"storage"`

	ContentSource struct {
		BaseURL    string        `yaml:"base_url"`    // Content source API root
		ScreenPath string        `yaml:"screen_path"` // Path of the screen check endpoint
		Timeout    time.Duration `yaml:"timeout"`     // Per-request timeout
	} `yaml:"content_source"`

	Sync struct {
		BaseInterval           time.Duration `yaml:"base_interval"`           // Poll interval while registered
		UnregisteredMultiplier int           `yaml:"unregistered_multiplier"` // Interval multiplier while unregistered, 1 disables backoff
		MinPollSpacing         time.Duration `yaml:"min_poll_spacing"`        // Minimum time between two polls
		SlowMode               bool          `yaml:"slow_mode"`               // Poll every 5 minutes
	} `yaml:"sync"`

	Connectivity struct {
		Interval     time.Duration `yaml:"interval"`      // Time between reachability checks
		ProbeTimeout time.Duration `yaml:"probe_timeout"` // Timeout of one HEAD probe
		ProbeURLs    []string      `yaml:"probe_urls"`    // URLs probed with HEAD; empty uses the content source
		Workers      int           `yaml:"workers"`       // Concurrent probes
	} `yaml:"connectivity"`

	Materializer struct {
		Mode      string        `yaml:"mode"`       // "validate" or "prefetch"
		ItemDelay time.Duration `yaml:"item_delay"` // Pause between items
		MediaDir  string        `yaml:"media_dir"`  // Download directory in prefetch mode

		DownloadTimeout time.Duration `yaml:"download_timeout"` // Timeout of one media download

		ObjectStorage struct {
			Enabled         bool   `yaml:"enabled"`
			Endpoint        string `yaml:"endpoint"`
			AccessKeyID     string `yaml:"access_key_id"`
			SecretAccessKey string `yaml:"secret_access_key"`
			UseSSL          bool   `yaml:"use_ssl"`
		} `yaml:"object_storage"`
	} `yaml:"materializer"`

	MQTT struct {
		Enabled            bool   `yaml:"enabled"`              // Connect to the fleet broker
		Broker             string `yaml:"broker"`               // MQTT broker address
		ClientID           string `yaml:"client_id"`            // MQTT client ID prefix
		CACertificate      string `yaml:"ca_certificate"`       // Path to the CA certificate, enables TLS
		Username           string `yaml:"username"`             // Broker username
		Password           string `yaml:"password"`             // Broker password
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // Skip broker certificate verification
	} `yaml:"mqtt"`

	Services struct {
		Heartbeat struct {
			Enabled      bool          `yaml:"enabled"`       // Enable/disable heartbeat service
			Topic        string        `yaml:"topic"`         // MQTT topic for heartbeat messages
			RefreshTopic string        `yaml:"refresh_topic"` // Prefix of the per-screen refresh topic
			Interval     time.Duration `yaml:"interval"`      // Interval between heartbeats
			QOS          int           `yaml:"qos"`           // MQTT QoS level for heartbeat messages

			Metrics metrics_collectors.MetricsConfig `yaml:"metrics"` // Device health included in each heartbeat
		} `yaml:"heartbeat"`

		StatusAPI struct {
			Enabled bool   `yaml:"enabled"` // Serve the state API to the renderer
			Addr    string `yaml:"addr"`    // Listen address
		} `yaml:"status_api"`
	} `yaml:"services"`
}

// LoadConfig loads the YAML configuration from the specified file, fills in
// defaults and validates the result.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", filename, err)
	}
	return &config, nil
}

// ApplyDefaults sets every unset field to its default.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = kvstore.DriverFile
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/signage.json"
	}
	if c.ContentSource.Timeout == 0 {
		c.ContentSource.Timeout = constants.DefaultContentTimeout
	}

	if c.Sync.BaseInterval == 0 {
		c.Sync.BaseInterval = constants.DefaultBaseInterval
	}
	if c.Sync.SlowMode {
		c.Sync.BaseInterval = constants.SlowModeBaseInterval
	}
	if c.Sync.UnregisteredMultiplier == 0 {
		c.Sync.UnregisteredMultiplier = constants.DefaultUnregisteredMultiplier
	}
	if c.Sync.MinPollSpacing == 0 {
		c.Sync.MinPollSpacing = constants.DefaultMinPollSpacing
	}

	if c.Connectivity.Interval == 0 {
		c.Connectivity.Interval = constants.DefaultConnectivityInterval
	}
	if c.Connectivity.ProbeTimeout == 0 {
		c.Connectivity.ProbeTimeout = constants.DefaultProbeTimeout
	}
	if len(c.Connectivity.ProbeURLs) == 0 && c.ContentSource.BaseURL != "" {
		c.Connectivity.ProbeURLs = []string{c.ContentSource.BaseURL}
	}

	if c.Materializer.Mode == "" {
		c.Materializer.Mode = materializer.ModeValidate
	}
	if c.Materializer.DownloadTimeout == 0 {
		c.Materializer.DownloadTimeout = 2 * time.Minute
	}
	if c.Materializer.MediaDir == "" {
		c.Materializer.MediaDir = "data/media"
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "signage-agent"
	}
	if c.Services.Heartbeat.Interval == 0 {
		c.Services.Heartbeat.Interval = constants.DefaultHeartbeatInterval
	}
	if c.Services.Heartbeat.Metrics.DiskPath == "" {
		c.Services.Heartbeat.Metrics.DiskPath = c.Materializer.MediaDir
	}
	if c.Services.StatusAPI.Addr == "" {
		c.Services.StatusAPI.Addr = "127.0.0.1:8090"
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if c.ContentSource.BaseURL == "" {
		errs = append(errs, errors.New("content_source.base_url is required"))
	}
	if c.Storage.Driver != kvstore.DriverFile && c.Storage.Driver != kvstore.DriverSQLite {
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}
	if c.Sync.BaseInterval < 0 || c.Sync.MinPollSpacing < 0 {
		errs = append(errs, errors.New("sync intervals must be positive"))
	}
	if c.Sync.UnregisteredMultiplier < 1 {
		errs = append(errs, errors.New("sync.unregistered_multiplier must be at least 1"))
	}
	if c.Materializer.Mode != materializer.ModeValidate && c.Materializer.Mode != materializer.ModePrefetch {
		errs = append(errs, fmt.Errorf("materializer.mode %q is not supported", c.Materializer.Mode))
	}
	if c.Materializer.ObjectStorage.Enabled && c.Materializer.ObjectStorage.Endpoint == "" {
		errs = append(errs, errors.New("materializer.object_storage.endpoint is required when enabled"))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	if c.Services.Heartbeat.Enabled {
		if !c.MQTT.Enabled {
			errs = append(errs, errors.New("services.heartbeat requires mqtt to be enabled"))
		}
		if c.Services.Heartbeat.Topic == "" {
			errs = append(errs, errors.New("services.heartbeat.topic is required"))
		}
		if c.Services.Heartbeat.QOS < 0 || c.Services.Heartbeat.QOS > 2 {
			errs = append(errs, errors.New("services.heartbeat.qos must be 0, 1 or 2"))
		}
	}

	return errors.Join(errs...)
}
