package main

import (
	"github.com/84hero/nft-dropbot/internal/webhook"
	"github.com/84hero/nft-dropbot/pkg/config"
	"github.com/84hero/nft-dropbot/pkg/sink"
	"github.com/ethereum/go-ethereum/log"
)

// initOutputs builds every enabled output. An output that cannot be opened is logged and skipped.
func initOutputs(cfg config.OutputsConfig) []sink.Output {
	var outputs []sink.Output

	// Webhook
	if wh := cfg.Webhook; wh.Enabled {
		outputs = append(outputs, sink.NewWebhookOutput(webhook.Config{
			URL:            wh.URL,
			Secret:         wh.Secret,
			MaxAttempts:    wh.Retry.MaxAttempts,
			InitialBackoff: wh.Retry.InitialBackoff,
			MaxBackoff:     wh.Retry.MaxBackoff,
		}, wh.Async, wh.BufferSize, wh.Workers))
	}

	// File
	if cfg.File.Enabled {
		if fo, err := sink.NewFileOutput(cfg.File.Path); err == nil {
			outputs = append(outputs, fo)
		} else {
			log.Warn("Failed to open file output", "path", cfg.File.Path, "err", err)
		}
	}

	// Console
	if cfg.Console.Enabled {
		outputs = append(outputs, sink.NewConsoleOutput())
	}

	// Postgres
	if cfg.Postgres.Enabled {
		if po, err := sink.NewPostgresOutput(cfg.Postgres.URL, cfg.Postgres.Table); err == nil {
			outputs = append(outputs, po)
		} else {
			log.Warn("Failed to open postgres output", "err", err)
		}
	}

	// Redis
	if cfg.Redis.Enabled {
		if ro, err := sink.NewRedisOutput(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Key, cfg.Redis.Mode); err == nil {
			outputs = append(outputs, ro)
		} else {
			log.Warn("Failed to open redis output", "addr", cfg.Redis.Addr, "err", err)
		}
	}

	// Kafka
	if cfg.Kafka.Enabled {
		if ko, err := sink.NewKafkaOutput(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.User, cfg.Kafka.Password); err == nil {
			outputs = append(outputs, ko)
		} else {
			log.Warn("Failed to open kafka output", "brokers", cfg.Kafka.Brokers, "err", err)
		}
	}

	// RabbitMQ
	if cfg.RabbitMQ.Enabled {
		if ro, err := sink.NewRabbitMQOutput(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey, cfg.RabbitMQ.QueueName, cfg.RabbitMQ.Durable); err == nil {
			outputs = append(outputs, ro)
		} else {
			log.Warn("Failed to open rabbitmq output", "err", err)
		}
	}

	return outputs
}
