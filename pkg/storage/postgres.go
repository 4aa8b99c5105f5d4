package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"
)

var validPrefix = regexp.MustCompile(`^[a-zA-Z0-9_]*$`)

// PostgresStore implements the Checkpoints interface
type PostgresStore struct {
	db        *sql.DB
	tableName string
}

// NewPostgresStore initializes PostgreSQL storage.
// tablePrefix defaults to "dropbot_"; the resulting table is prefix + "state".
func NewPostgresStore(connStr string, tablePrefix string) (*PostgresStore, error) {
	if tablePrefix == "" {
		tablePrefix = "dropbot_"
	}
	if !validPrefix.MatchString(tablePrefix) {
		return nil, fmt.Errorf("invalid table prefix: %s", tablePrefix)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	store := &PostgresStore{
		db:        db,
		tableName: tablePrefix + "state",
	}

	if err := store.initTable(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (p *PostgresStore) initTable() error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		state_key VARCHAR(255) PRIMARY KEY,
		value BIGINT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`, p.tableName)
	_, err := p.db.Exec(query)
	return err
}

func (p *PostgresStore) Load(key string) (uint64, error) {
	var value uint64
	query := fmt.Sprintf("SELECT value FROM %s WHERE state_key = $1", p.tableName)
	err := p.db.QueryRow(query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (p *PostgresStore) Save(key string, value uint64) error {
	query := fmt.Sprintf(`
	INSERT INTO %s (state_key, value, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (state_key)
	DO UPDATE SET value = EXCLUDED.value, updated_at = NOW();
	`, p.tableName)
	_, err := p.db.Exec(query, key, value)
	return err
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
