package config

import "time"

type OutputsConfig struct {
	Webhook  WebhookOutputConfig  `mapstructure:"webhook"`
	File     FileOutputConfig     `mapstructure:"file"`
	Console  ConsoleOutputConfig  `mapstructure:"console"`
	Postgres PostgresOutputConfig `mapstructure:"postgres"`
	Redis    RedisOutputConfig    `mapstructure:"redis"`
	Kafka    KafkaOutputConfig    `mapstructure:"kafka"`
	RabbitMQ RabbitMQOutputConfig `mapstructure:"rabbitmq"`
}

type WebhookOutputConfig struct {
	Enabled    bool        `mapstructure:"enabled"`
	URL        string      `mapstructure:"url"`
	Secret     string      `mapstructure:"secret"`
	Retry      RetryConfig `mapstructure:"retry"`
	Async      bool        `mapstructure:"async"`
	BufferSize int         `mapstructure:"buffer_size"`
	Workers    int         `mapstructure:"workers"`
}

type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

type FileOutputConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type ConsoleOutputConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type PostgresOutputConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Table   string `mapstructure:"table"`
}

type RedisOutputConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
	Mode     string `mapstructure:"mode"` // list, pubsub
}

type KafkaOutputConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	User     string   `mapstructure:"user"`
	Password string   `mapstructure:"password"`
}

type RabbitMQOutputConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
	QueueName  string `mapstructure:"queue_name"`
	Durable    bool   `mapstructure:"durable"`
}
