package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	// minInterval is the settling time the sensor needs between two transactions.
	minInterval = time.Second
	// minStartHold is the shortest start signal (ms) the sensor answers to.
	minStartHold = 18
)

// Config holds the application configuration. Attention!
// To make it possible to overwrite fields with the -overwrite command
// line option each of the struct fields must be in the format
// first letter uppercase -> followed by CamelCase as in the config file.
// Config defines the struct of global config and the struct of the configuration file
type Config struct {
	Driver        string          `yaml:"driver"`
	Chip          string          `yaml:"chip"`
	Gpio          int             `yaml:"gpio"`
	StartHoldInt  int             `yaml:"starthold"`
	StartHold     time.Duration   `yaml:"-"`
	IntervalInt   int             `yaml:"interval"`
	Interval      time.Duration   `yaml:"-"`
	Retries       int             `yaml:"retries"`
	RetryDelayInt int             `yaml:"retrydelay"`
	RetryDelay    time.Duration   `yaml:"-"`
	Flag          FlagConfig      `yaml:"-"`
	Debug         DebugConfig     `yaml:"debug"`
	Webserver     WebserverConfig `yaml:"webserver"`
	MQTT          MQTTConfig      `yaml:"mqtt"`
	Emulator      EmulatorConfig  `yaml:"emulator"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	Debug      string
	ConfigFile string
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection       string        `yaml:"connection"`
	ClientID         string        `yaml:"clientid"`
	Interval         time.Duration `yaml:"-"`
	IntervalInt      int           `yaml:"interval"`
	Topic            string        `yaml:"topic"`
	DeltaHumidity    float64       `yaml:"deltahumidity"`
	DeltaTemperature float64       `yaml:"deltatemperature"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

// EmulatorConfig defines the values the emulated sensor reports.
type EmulatorConfig struct {
	Humidity    uint8 `yaml:"humidity"`
	Temperature uint8 `yaml:"temperature"`
}

func NewConfig() *Config {
	return &Config{
		Driver:        "gpiod",
		Chip:          "gpiochip0",
		Gpio:          4,
		StartHoldInt:  minStartHold,
		IntervalInt:   10,
		Retries:       5,
		RetryDelayInt: 2000,
		Flag:          FlagConfig{},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"data":    true,
				"metrics": true,
			},
		},
		MQTT: MQTTConfig{
			Connection:       "tcp://127.0.0.1:1883",
			ClientID:         "dht11",
			IntervalInt:      300,
			Topic:            "/dht11",
			DeltaHumidity:    2,
			DeltaTemperature: 1,
		},
		Emulator: EmulatorConfig{Humidity: 50, Temperature: 27},
	}
}

// LoadConfig reads the config file and applies the command line flags.
func (c *Config) LoadConfig() error {
	if c.Flag.ConfigFile != "" {
		if err := c.readConfigFile(); err != nil {
			return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
		}
	}

	if c.Flag.Debug != "" {
		c.Debug.FlagString = c.Flag.Debug
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}

	c.setDurations()
	return c.validate()
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	return c.decode(file)
}

func (c *Config) decode(r io.Reader) error {
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(c); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (c *Config) setDurations() {
	c.StartHold = time.Duration(c.StartHoldInt) * time.Millisecond
	c.Interval = time.Duration(c.IntervalInt) * time.Second
	c.RetryDelay = time.Duration(c.RetryDelayInt) * time.Millisecond
	c.MQTT.Interval = time.Duration(c.MQTT.IntervalInt) * time.Second
}

// validate rejects settings the sensor can't work with.
func (c *Config) validate() error {
	switch {
	case c.StartHoldInt < minStartHold:
		return fmt.Errorf("%w: starthold %vms, the sensor needs at least %vms", ErrInvalidConfig, c.StartHoldInt, minStartHold)
	case c.Interval < minInterval:
		return fmt.Errorf("%w: interval %v, minimum is %v", ErrInvalidConfig, c.Interval, minInterval)
	case c.RetryDelay < minInterval:
		return fmt.Errorf("%w: retrydelay %v, minimum is %v", ErrInvalidConfig, c.RetryDelay, minInterval)
	case c.Retries < 1:
		return fmt.Errorf("%w: retries %v, minimum is 1", ErrInvalidConfig, c.Retries)
	case c.Gpio < 0:
		return fmt.Errorf("%w: gpio %v", ErrInvalidConfig, c.Gpio)
	}
	return nil
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Debug.Flag = debug.Standard
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.Debug.FlagString)
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = os.Stderr
	case "stdout":
		c.Debug.File = os.Stdout
	default:
		if c.Debug.File, err = os.OpenFile(c.Debug.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}
