package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/84hero/nft-dropbot/internal/webhook"
	"github.com/84hero/nft-dropbot/pkg/airdrop"
	"github.com/IBM/sarama"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	_ "github.com/lib/pq"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

var ErrClosed = errors.New("output is closed")

var tableNameRe = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// Output delivers distribution reports to an external system
type Output interface {
	Name() string
	Send(ctx context.Context, report *airdrop.Report) error
	Close() error
}

// --- 1. Webhook Output ---

type WebhookOutput struct {
	client   *webhook.Client
	async    bool
	queue    chan *airdrop.Report
	wg       sync.WaitGroup
	closed   bool
	closedMu sync.Mutex
}

// NewWebhookOutput creates a webhook output. In async mode reports are queued and
// posted by `workers` goroutines, so Send only fails when the queue is closed.
func NewWebhookOutput(cfg webhook.Config, async bool, bufferSize, workers int) *WebhookOutput {
	wo := &WebhookOutput{
		client: webhook.NewClient(cfg),
		async:  async,
	}

	if async {
		if bufferSize <= 0 {
			bufferSize = 100
		}
		if workers <= 0 {
			workers = 1
		}
		wo.queue = make(chan *airdrop.Report, bufferSize)
		for i := 0; i < workers; i++ {
			wo.wg.Add(1)
			go wo.worker()
		}
	}

	return wo
}

func (w *WebhookOutput) Name() string { return "webhook" }

func (w *WebhookOutput) worker() {
	defer w.wg.Done()
	for report := range w.queue {
		if err := w.client.Send(context.Background(), report); err != nil {
			log.Error("Async webhook delivery failed", "block", report.BlockNumber, "err", err)
		}
	}
}

func (w *WebhookOutput) Send(ctx context.Context, report *airdrop.Report) error {
	if w.async {
		w.closedMu.Lock()
		defer w.closedMu.Unlock()
		if w.closed {
			return ErrClosed
		}
		select {
		case w.queue <- report:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return w.client.Send(ctx, report)
}

// Close drains the async queue before returning
func (w *WebhookOutput) Close() error {
	if w.async {
		w.closedMu.Lock()
		if !w.closed {
			w.closed = true
			close(w.queue)
		}
		w.closedMu.Unlock()
		w.wg.Wait()
	}
	return nil
}

// --- 2. File Output ---

// FileOutput appends one JSON line per report
type FileOutput struct {
	path string
	mu   sync.Mutex
	file *os.File
}

func NewFileOutput(path string) (*FileOutput, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileOutput{path: path, file: f}, nil
}

func (f *FileOutput) Name() string { return "file" }

func (f *FileOutput) Send(ctx context.Context, report *airdrop.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return json.NewEncoder(f.file).Encode(report)
}

func (f *FileOutput) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// --- 3. Console Output ---

type ConsoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleOutput() *ConsoleOutput {
	return &ConsoleOutput{w: os.Stdout}
}

func (c *ConsoleOutput) Name() string { return "console" }

func (c *ConsoleOutput) Send(ctx context.Context, report *airdrop.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return json.NewEncoder(c.w).Encode(report)
}

func (c *ConsoleOutput) Close() error { return nil }

// --- 4. PostgreSQL Output ---

// PostgresOutput stores one row per mint result
type PostgresOutput struct {
	db    *sql.DB
	table string
}

func NewPostgresOutput(url, table string) (*PostgresOutput, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %s", table)
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	po, err := NewPostgresOutputWithDB(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return po, nil
}

// NewPostgresOutputWithDB uses an existing connection and creates the table if needed
func NewPostgresOutputWithDB(db *sql.DB, table string) (*PostgresOutput, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %s", table)
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id SERIAL PRIMARY KEY,
			chain TEXT,
			block_number BIGINT,
			recipient TEXT,
			token_id NUMERIC,
			tx_hash TEXT,
			success BOOLEAN,
			error TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_%s_block ON %s (block_number);
	`, table, table, table)
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &PostgresOutput{db: db, table: table}, nil
}

func (p *PostgresOutput) Name() string { return "postgres" }

func (p *PostgresOutput) Send(ctx context.Context, report *airdrop.Report) error {
	if report == nil || len(report.Results) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const cols = 7
	valueStrings := make([]string, 0, len(report.Results))
	valueArgs := make([]interface{}, 0, len(report.Results)*cols)
	for i, r := range report.Results {
		n := i * cols
		valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7))

		var tokenID interface{}
		if r.TokenID != nil {
			tokenID = r.TokenID.String()
		}
		var txHash interface{}
		if r.TxHash != (common.Hash{}) {
			txHash = r.TxHash.Hex()
		}
		valueArgs = append(valueArgs, report.Chain, report.BlockNumber, r.Address.Hex(), tokenID, txHash, r.OK(), r.Error)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (chain, block_number, recipient, token_id, tx_hash, success, error) VALUES %s", p.table, strings.Join(valueStrings, ","))
	if _, err := tx.ExecContext(ctx, stmt, valueArgs...); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresOutput) Close() error { return p.db.Close() }

// --- 5. Redis Output ---

type RedisOutput struct {
	client *redis.Client
	key    string
	mode   string
}

// NewRedisOutput connects to redis. mode is "list" (LPUSH) or "pubsub" (PUBLISH).
func NewRedisOutput(addr, password string, db int, key, mode string) (*RedisOutput, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	if key == "" {
		key = "dropbot:reports"
	}
	return &RedisOutput{client: rdb, key: key, mode: mode}, nil
}

func (r *RedisOutput) Name() string { return "redis" }

func (r *RedisOutput) Send(ctx context.Context, report *airdrop.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	if r.mode == "pubsub" {
		return r.client.Publish(ctx, r.key, data).Err()
	}
	return r.client.LPush(ctx, r.key, data).Err()
}

func (r *RedisOutput) Close() error { return r.client.Close() }

// --- 6. Kafka Output ---

type KafkaOutput struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaOutput(brokers []string, topic, user, password string) (*KafkaOutput, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	if user != "" {
		config.Net.SASL.Enable = true
		config.Net.SASL.User = user
		config.Net.SASL.Password = password
	}
	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return &KafkaOutput{producer: producer, topic: topic}, nil
}

func (k *KafkaOutput) Name() string { return "kafka" }

// Send publishes one message per mint result, keyed by recipient so a consumer sees
// each address's history in order.
func (k *KafkaOutput) Send(ctx context.Context, report *airdrop.Report) error {
	if report == nil || len(report.Results) == 0 {
		return nil
	}
	msgs := make([]*sarama.ProducerMessage, 0, len(report.Results))
	for _, r := range report.Results {
		data, err := json.Marshal(resultMessage{
			Chain:       report.Chain,
			BlockNumber: report.BlockNumber,
			Policy:      report.Policy,
			MintResult:  r,
		})
		if err != nil {
			return err
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: k.topic,
			Key:   sarama.StringEncoder(r.Address.Hex()),
			Value: sarama.ByteEncoder(data),
		})
	}
	return k.producer.SendMessages(msgs)
}

func (k *KafkaOutput) Close() error { return k.producer.Close() }

// resultMessage is a single mint result with its pass context
type resultMessage struct {
	Chain       string         `json:"chain"`
	BlockNumber uint64         `json:"block_number"`
	Policy      airdrop.Policy `json:"policy"`
	airdrop.MintResult
}

// --- 7. RabbitMQ Output ---

type RabbitMQOutput struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	routingKey string
}

func NewRabbitMQOutput(url, exchange, routingKey, queueName string, durable bool) (*RabbitMQOutput, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if exchange != "" {
		if err := ch.ExchangeDeclare(exchange, "topic", durable, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, err
		}
	}
	if queueName != "" {
		q, err := ch.QueueDeclare(queueName, durable, false, false, false, nil)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, err
		}
		if exchange != "" {
			if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
				ch.Close()
				conn.Close()
				return nil, err
			}
		}
	}
	return &RabbitMQOutput{conn: conn, ch: ch, exchange: exchange, routingKey: routingKey}, nil
}

func (r *RabbitMQOutput) Name() string { return "rabbitmq" }

func (r *RabbitMQOutput) Send(ctx context.Context, report *airdrop.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return r.ch.PublishWithContext(ctx, r.exchange, r.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         data,
	})
}

func (r *RabbitMQOutput) Close() error {
	r.ch.Close()
	return r.conn.Close()
}
