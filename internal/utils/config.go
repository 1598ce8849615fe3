package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/benmeehan/geo-distance/internal/constants"
	"github.com/benmeehan/geo-distance/pkg/file"
	"github.com/joho/godotenv"
)

// Config represents the structure of the configuration file.
type Config struct {
	MQTT struct {
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID prefix
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate, empty for plain TCP
		Username      string `yaml:"username"`
		Password      string `yaml:"password"`
	} `yaml:"mqtt"`

	Identity struct {
		InstanceFile string `yaml:"instance_file"` // Path to the instance identity file
	} `yaml:"identity"`

	Logging struct {
		Level  string `yaml:"level"`  // debug, info, warn or error
		Format string `yaml:"format"` // json or console
	} `yaml:"logging"`

	Services struct {
		Distance struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic"`           // Base topic; requests arrive on <topic>/request
			QOS            *int          `yaml:"qos"`             // MQTT QoS for requests and replies, 1 when omitted
			Workers        int           `yaml:"workers"`         // Concurrent request handlers
			PublishTimeout time.Duration `yaml:"publish_timeout"` // Upper bound on waiting for a reply publish
		} `yaml:"distance"`

		Heartbeat struct {
			Enabled  bool          `yaml:"enabled"`
			Topic    string        `yaml:"topic"`
			Interval time.Duration `yaml:"interval"`
			QOS      int           `yaml:"qos"`
		} `yaml:"heartbeat"`
	} `yaml:"services"`
}

// Environment variables that override the file.
const (
	EnvMQTTBroker    = "MQTT_BROKER"
	EnvMQTTClientID  = "MQTT_CLIENT_ID"
	EnvMQTTUsername  = "MQTT_USERNAME"
	EnvMQTTPassword  = "MQTT_PASSWORD"
	EnvLogLevel      = "LOG_LEVEL"
	EnvDistanceTopic = "DISTANCE_TOPIC"
)

// LoadConfig loads the YAML configuration from filename, applies environment
// overrides (including any .env file in the working directory), fills defaults and
// validates the result.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	override(&c.MQTT.Broker, EnvMQTTBroker)
	override(&c.MQTT.ClientID, EnvMQTTClientID)
	override(&c.MQTT.Username, EnvMQTTUsername)
	override(&c.MQTT.Password, EnvMQTTPassword)
	override(&c.Logging.Level, EnvLogLevel)
	override(&c.Services.Distance.Topic, EnvDistanceTopic)
}

func (c *Config) applyDefaults() {
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "geo-distance"
	}
	if c.Identity.InstanceFile == "" {
		c.Identity.InstanceFile = "instance.json"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	d := &c.Services.Distance
	if d.Topic == "" {
		d.Topic = constants.DefaultDistanceTopic
	}
	if d.QOS == nil {
		qos := constants.DefaultQOS
		d.QOS = &qos
	}
	if d.Workers == 0 {
		d.Workers = constants.DefaultWorkers
	}
	if d.PublishTimeout == 0 {
		d.PublishTimeout = constants.DefaultPublishTimeout
	}

	h := &c.Services.Heartbeat
	if h.Topic == "" {
		h.Topic = constants.DefaultHeartbeatTopic
	}
	if h.Interval == 0 {
		h.Interval = constants.DefaultHeartbeatEvery
	}
}

// DistanceQOS returns the configured distance QoS, or the default when none is set.
func (c *Config) DistanceQOS() int {
	if c.Services.Distance.QOS == nil {
		return constants.DefaultQOS
	}
	return *c.Services.Distance.QOS
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.MQTT.Broker) == "" {
		return errors.New("mqtt.broker is required")
	}
	if q := c.DistanceQOS(); q < 0 || q > 2 {
		return fmt.Errorf("services.distance.qos must be 0, 1 or 2, got %d", q)
	}
	if q := c.Services.Heartbeat.QOS; q < 0 || q > 2 {
		return fmt.Errorf("services.heartbeat.qos must be 0, 1 or 2, got %d", q)
	}
	if c.Services.Distance.Workers < 1 {
		return fmt.Errorf("services.distance.workers must be at least 1, got %d", c.Services.Distance.Workers)
	}
	if c.Services.Heartbeat.Interval < 0 {
		return errors.New("services.heartbeat.interval must not be negative")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
