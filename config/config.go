// Package config loads the venue configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"matchbook/domain/orderbook"
	"matchbook/infra/idgen"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Session struct {
		Open     string `yaml:"open"`
		Close    string `yaml:"close"`
		Location string `yaml:"location"`
	} `yaml:"session"`
	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
	Server struct {
		GRPCAddr     string        `yaml:"grpc_addr"`
		MetricsAddr  string        `yaml:"metrics_addr"`
		TickInterval time.Duration `yaml:"tick_interval"`
	} `yaml:"server"`
	Outbox struct {
		Dir string `yaml:"dir"`
	} `yaml:"outbox"`
	Broadcaster struct {
		Interval time.Duration `yaml:"interval"`
	} `yaml:"broadcaster"`
	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Client  string   `yaml:"client"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Feeder struct {
		Enabled bool   `yaml:"enabled"`
		Rate    int    `yaml:"rate"`
		Seed    uint64 `yaml:"seed"`
		IDs     string `yaml:"ids"`
	} `yaml:"feeder"`
}

const (
	ClientSarama  = "sarama"
	ClientKafkaGo = "kafka-go"
)

func Default() Config {
	var c Config
	c.Session.Open = "09:30"
	c.Session.Close = "16:00"
	c.Session.Location = "UTC"
	c.Logging.Level = "info"
	c.Server.GRPCAddr = ":50051"
	c.Server.MetricsAddr = ":9090"
	c.Server.TickInterval = time.Second
	c.Outbox.Dir = "./outbox"
	c.Broadcaster.Interval = 250 * time.Millisecond
	c.Kafka.Client = ClientSarama
	c.Kafka.Brokers = []string{"localhost:9092"}
	c.Kafka.Topic = "trades"
	c.Feeder.Rate = 100
	c.Feeder.IDs = idgen.KindRandom
	return c
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if _, err := c.BookSession(); err != nil {
		return fmt.Errorf("%w: session: %v", ErrInvalid, err)
	}
	if c.Server.TickInterval <= 0 {
		return fmt.Errorf("%w: server.tick_interval must be positive", ErrInvalid)
	}
	if c.Broadcaster.Interval <= 0 {
		return fmt.Errorf("%w: broadcaster.interval must be positive", ErrInvalid)
	}
	if c.Feeder.Enabled {
		if c.Feeder.Rate <= 0 {
			return fmt.Errorf("%w: feeder.rate must be positive", ErrInvalid)
		}
		if _, err := idgen.New(c.Feeder.IDs, 0); err != nil {
			return fmt.Errorf("%w: feeder.ids: %v", ErrInvalid, err)
		}
	}
	if c.Kafka.Enabled {
		switch c.Kafka.Client {
		case ClientSarama, ClientKafkaGo:
		default:
			return fmt.Errorf("%w: unknown kafka.client %q", ErrInvalid, c.Kafka.Client)
		}
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return fmt.Errorf("%w: kafka needs brokers and a topic", ErrInvalid)
		}
	}
	return nil
}

// BookSession converts the session block into an orderbook.Session.
func (c Config) BookSession() (orderbook.Session, error) {
	loc, err := time.LoadLocation(c.Session.Location)
	if err != nil {
		return orderbook.Session{}, err
	}
	return orderbook.NewSession(c.Session.Open, c.Session.Close, loc)
}
