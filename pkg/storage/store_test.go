package storage

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// --- Memory Store Tests ---

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore("test_")
	assert.NoError(t, s.Save(CursorKey("eth"), 100))

	h, err := s.Load(CursorKey("eth"))
	assert.NoError(t, err)
	assert.Equal(t, uint64(100), h)

	// Keys are independent
	h, err = s.Load(TokenIDKey("eth"))
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), h)

	assert.NoError(t, s.Close())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "cursor:base-mainnet", CursorKey("base-mainnet"))
	assert.Equal(t, "next_token_id:base-mainnet", TokenIDKey("base-mainnet"))
	assert.Equal(t, "last_drop:base-mainnet", LastDropKey("base-mainnet"))
}

func TestOpen(t *testing.T) {
	s, err := Open(Options{})
	assert.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(Options{Driver: "MEMORY", Prefix: "x_"})
	assert.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(Options{Driver: "sqlite"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage driver")
}

// --- Postgres Store Tests ---

func TestPostgresStore_InitTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := &PostgresStore{
		db:        db,
		tableName: "custom_state",
	}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS custom_state")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.initTable())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := &PostgresStore{
		db:        db,
		tableName: "dropbot_state",
	}

	// 1. Save Success
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dropbot_state")).
		WithArgs("next_token_id:eth", 100).
		WillReturnResult(sqlmock.NewResult(1, 1))
	assert.NoError(t, store.Save("next_token_id:eth", 100))

	// 2. Save Error
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dropbot_state")).
		WillReturnError(assert.AnError)
	assert.Error(t, store.Save("next_token_id:eth", 100))

	// 3. Load Success
	rows := sqlmock.NewRows([]string{"value"}).AddRow(200)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM dropbot_state")).
		WithArgs("cursor:eth").
		WillReturnRows(rows)

	h, err := store.Load("cursor:eth")
	assert.NoError(t, err)
	assert.Equal(t, uint64(200), h)

	// 4. Load Not Found (should return 0, no error)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value")).
		WithArgs("cursor:other").
		WillReturnError(sql.ErrNoRows)
	h, err = store.Load("cursor:other")
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), h)

	// 5. Load Error
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value")).
		WillReturnError(assert.AnError)
	_, err = store.Load("cursor:broken")
	assert.Error(t, err)

	// 6. Close
	mock.ExpectClose()
	assert.NoError(t, store.Close())
}

func TestNewPostgresStore_InvalidURL(t *testing.T) {
	_, err := NewPostgresStore("postgres://invalid-url?param=^^", "prefix_")
	assert.Error(t, err)
}

func TestNewPostgresStore_InvalidPrefix(t *testing.T) {
	_, err := NewPostgresStore("postgres://localhost", "x; DROP TABLE users;")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table prefix")
}

// --- Redis Store Tests ---

func TestRedisStore_SaveLoad(t *testing.T) {
	db, mock := redismock.NewClientMock()

	store := &RedisStore{
		client: db,
		prefix: "drop:",
	}

	// 1. Save Success
	mock.ExpectSet("drop:cursor:eth", uint64(100), time.Duration(0)).SetVal("OK")
	assert.NoError(t, store.Save("cursor:eth", 100))

	// 2. Save Error
	mock.ExpectSet("drop:cursor:eth", uint64(100), time.Duration(0)).SetErr(assert.AnError)
	assert.Error(t, store.Save("cursor:eth", 100))

	// 3. Load Success
	mock.ExpectGet("drop:cursor:eth").SetVal("500")
	h, err := store.Load("cursor:eth")
	assert.NoError(t, err)
	assert.Equal(t, uint64(500), h)

	// 4. Load Not Found (Redis Nil)
	mock.ExpectGet("drop:cursor:new").SetErr(redis.Nil)
	h, err = store.Load("cursor:new")
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), h)

	// 5. Load Error
	mock.ExpectGet("drop:cursor:broken").SetErr(assert.AnError)
	_, err = store.Load("cursor:broken")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, store.Close())
}

// NewRedisStore pings on construction, so an unreachable address must fail.
func TestNewRedisStore_PingFail(t *testing.T) {
	_, err := NewRedisStore("localhost:65432", "", 0, "p_")
	assert.Error(t, err)
}
