package app

import (
	"strings"

	"github.com/charlesng35/campus/internal/database"
	"github.com/charlesng35/campus/internal/queue"
	"github.com/charlesng35/campus/internal/realtime"
)

// DatabaseSettings maps the configured driver onto database.Config.
func (c DatabaseConfig) DatabaseSettings() database.Config {
	cfg := database.Config{
		Driver:          strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:            c.Path,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		LogQueries:      c.LogQueries,
	}

	var host DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql":
		host = c.MySQL
	default:
		return cfg
	}

	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	return cfg
}

// QueueSettings maps QueueConfig onto queue.Config.
func (c QueueConfig) QueueSettings() queue.Config {
	return queue.Config{
		Driver:     c.Driver,
		Name:       c.Name,
		BufferSize: c.BufferSize,
		RabbitMQ: queue.RabbitMQConfig{
			URL:      c.RabbitMQ.URL,
			Prefetch: c.RabbitMQ.Prefetch,
		},
		NATS: queue.NATSConfig{
			URL:     c.NATS.URL,
			Stream:  c.NATS.Stream,
			Durable: c.NATS.Durable,
			AckWait: c.NATS.AckWait,
		},
		Kafka: queue.KafkaConfig{
			Brokers: c.Kafka.Brokers,
			GroupID: c.Kafka.GroupID,
		},
	}
}

// BrokerOptions builds realtime.Options. The authenticator is supplied by
// the caller since it depends on the JWT service.
func (c RealtimeConfig) BrokerOptions(authenticator realtime.Authenticator) realtime.Options {
	return realtime.Options{
		Authenticator:  authenticator,
		AllowedOrigins: c.AllowedOrigins,
		HeartBeat:      c.HeartBeat,
		SendBuffer:     c.SendBuffer,
	}
}
