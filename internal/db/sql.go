package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/ukydev/road-vision/internal/models"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour spoken by a SQLCollection.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const recordColumns = `id, road_state, user_id, x, y, z, latitude, longitude, timestamp`

// SQLCollection stores processed agent data in a relational table.
type SQLCollection struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens (or creates) a SQLite database file, creating parent
// directories as needed.
func OpenSQLite(path string) (*SQLCollection, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &SQLCollection{db: db, dialect: DialectSQLite}, nil
}

// OpenPostgres connects to PostgreSQL through the pgx stdlib driver.
func OpenPostgres(ctx context.Context, dsn string) (*SQLCollection, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &SQLCollection{db: db, dialect: DialectPostgres}, nil
}

// InitSchema creates the processed_agent_data table if it does not exist.
// Identity columns never hand out an id twice, even after deletes.
func (c *SQLCollection) InitSchema(ctx context.Context) error {
	var stmt string
	switch c.dialect {
	case DialectPostgres:
		stmt = `CREATE TABLE IF NOT EXISTS processed_agent_data (
			id BIGSERIAL PRIMARY KEY,
			road_state TEXT NOT NULL,
			user_id BIGINT NOT NULL,
			x DOUBLE PRECISION NOT NULL,
			y DOUBLE PRECISION NOT NULL,
			z DOUBLE PRECISION NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		);`
	default:
		stmt = `CREATE TABLE IF NOT EXISTS processed_agent_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			road_state TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			timestamp DATETIME NOT NULL
		);`
	}

	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_processed_agent_data_user ON processed_agent_data(user_id);`); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// InsertProcessedAgentData stores one record in a single statement.
func (c *SQLCollection) InsertProcessedAgentData(ctx context.Context, data models.ProcessedAgentData) (models.PersistedRecord, error) {
	if c.db == nil {
		return models.PersistedRecord{}, fmt.Errorf("store not initialized")
	}

	rec := data.Flatten()
	row := c.db.QueryRowContext(ctx, c.rebind(
		`INSERT INTO processed_agent_data (road_state, user_id, x, y, z, latitude, longitude, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+recordColumns+`;`),
		c.args(rec)...,
	)
	stored, err := scanRecord(row)
	if err != nil {
		return models.PersistedRecord{}, fmt.Errorf("insert processed agent data: %w", err)
	}
	return stored, nil
}

// FindProcessedAgentDataByID returns the record with the given id.
func (c *SQLCollection) FindProcessedAgentDataByID(ctx context.Context, id int64) (models.PersistedRecord, error) {
	if c.db == nil {
		return models.PersistedRecord{}, fmt.Errorf("store not initialized")
	}

	row := c.db.QueryRowContext(ctx, c.rebind(`SELECT `+recordColumns+` FROM processed_agent_data WHERE id = ?;`), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PersistedRecord{}, ErrNotFound
	}
	if err != nil {
		return models.PersistedRecord{}, fmt.Errorf("get processed agent data: %w", err)
	}
	return rec, nil
}

// FindProcessedAgentData returns every record ordered by id.
func (c *SQLCollection) FindProcessedAgentData(ctx context.Context) ([]models.PersistedRecord, error) {
	if c.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}

	rows, err := c.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM processed_agent_data ORDER BY id ASC;`)
	if err != nil {
		return nil, fmt.Errorf("query processed agent data: %w", err)
	}
	defer rows.Close()

	records := []models.PersistedRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan processed agent data: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processed agent data: %w", err)
	}
	return records, nil
}

// UpdateProcessedAgentData replaces every column of an existing record.
func (c *SQLCollection) UpdateProcessedAgentData(ctx context.Context, id int64, data models.ProcessedAgentData) (models.PersistedRecord, error) {
	if c.db == nil {
		return models.PersistedRecord{}, fmt.Errorf("store not initialized")
	}

	args := append(c.args(data.Flatten()), id)
	row := c.db.QueryRowContext(ctx, c.rebind(
		`UPDATE processed_agent_data
		 SET road_state = ?, user_id = ?, x = ?, y = ?, z = ?, latitude = ?, longitude = ?, timestamp = ?
		 WHERE id = ?
		 RETURNING `+recordColumns+`;`),
		args...,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PersistedRecord{}, ErrNotFound
	}
	if err != nil {
		return models.PersistedRecord{}, fmt.Errorf("update processed agent data: %w", err)
	}
	return rec, nil
}

// DeleteProcessedAgentData removes a record and returns what was deleted.
func (c *SQLCollection) DeleteProcessedAgentData(ctx context.Context, id int64) (models.PersistedRecord, error) {
	if c.db == nil {
		return models.PersistedRecord{}, fmt.Errorf("store not initialized")
	}

	row := c.db.QueryRowContext(ctx, c.rebind(`DELETE FROM processed_agent_data WHERE id = ? RETURNING `+recordColumns+`;`), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PersistedRecord{}, ErrNotFound
	}
	if err != nil {
		return models.PersistedRecord{}, fmt.Errorf("delete processed agent data: %w", err)
	}
	return rec, nil
}

// Ping verifies the database is reachable.
func (c *SQLCollection) Ping(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("store not initialized")
	}
	return c.db.PingContext(ctx)
}

// Close releases the underlying database handle.
func (c *SQLCollection) Close(_ context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// args returns the column values in insert order. SQLite keeps timestamps
// as RFC 3339 text; PostgreSQL gets a native timestamptz.
func (c *SQLCollection) args(rec models.PersistedRecord) []any {
	var ts any = rec.Timestamp
	if c.dialect == DialectSQLite {
		ts = rec.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return []any{string(rec.RoadState), rec.UserID, rec.X, rec.Y, rec.Z, rec.Latitude, rec.Longitude, ts}
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (c *SQLCollection) rebind(query string) string {
	if c.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.PersistedRecord, error) {
	var (
		rec       models.PersistedRecord
		roadState string
		ts        sqlTime
	)
	if err := row.Scan(&rec.ID, &roadState, &rec.UserID, &rec.X, &rec.Y, &rec.Z, &rec.Latitude, &rec.Longitude, &ts); err != nil {
		return models.PersistedRecord{}, err
	}
	rec.RoadState = models.RoadState(roadState)
	rec.Timestamp = ts.Time
	return rec, nil
}

// sqlTime accepts timestamps as returned by either driver.
type sqlTime struct {
	time.Time
}

var sqliteTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

func (t *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *sqlTime) parse(s string) error {
	for _, layout := range sqliteTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid stored timestamp %q", s)
}
