package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/m-mizutani/burrow/pkg/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS agents (
    agent_id   TEXT PRIMARY KEY,
    public_key BLOB NOT NULL,
    created_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_agents_public_key ON agents(public_key);

CREATE TABLE IF NOT EXISTS memories (
    agent_id       TEXT NOT NULL REFERENCES agents(agent_id),
    version        INTEGER NOT NULL,
    encrypted_data TEXT NOT NULL,
    stored_at      TEXT NOT NULL,
    PRIMARY KEY (agent_id, version)
);
`

// SQLite is the embedded Repository backend. Version assignment runs
// inside an immediate transaction, which serializes concurrent stores
// for the same agent at the database level.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) a database file and ensures the
// schema exists.
func NewSQLite(path string) (*SQLite, error) {
	dsn := "file:" + path + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to initialize sqlite schema", goerr.V("path", path))
	}
	return &SQLite{db: db}, nil
}

func (r *SQLite) PutAgent(ctx context.Context, agent *model.Agent) error {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM agents WHERE agent_id = ?`, string(agent.ID)).Scan(&exists)
	if err != nil {
		return goerr.Wrap(err, "failed to check agent existence", goerr.V("agent_id", agent.ID))
	}
	if exists > 0 {
		return goerr.Wrap(model.ErrDirectoryCollision, "agent already registered",
			goerr.V("agent_id", agent.ID))
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO agents (agent_id, public_key, created_at) VALUES (?, ?, ?)`,
		string(agent.ID), agent.PublicKey, agent.CreatedAt.UTC().Format(time.RFC3339Nano))
	if isConstraintViolation(err) {
		// Lost the race to an identical insert, which is still a
		// collision from the caller's point of view.
		return goerr.Wrap(model.ErrDirectoryCollision, err.Error(), goerr.V("agent_id", agent.ID))
	}
	if err != nil {
		return goerr.Wrap(err, "failed to insert agent", goerr.V("agent_id", agent.ID))
	}
	return nil
}

// isConstraintViolation reports whether err is a SQLITE_CONSTRAINT
// failure, such as a duplicate primary key or unique index value.
func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

func (r *SQLite) GetAgent(ctx context.Context, id model.AgentID) (*model.Agent, error) {
	return r.scanAgent(r.db.QueryRowContext(ctx,
		`SELECT agent_id, public_key, created_at FROM agents WHERE agent_id = ?`, string(id)))
}

func (r *SQLite) FindAgentByPublicKey(ctx context.Context, publicKey []byte) (*model.Agent, error) {
	return r.scanAgent(r.db.QueryRowContext(ctx,
		`SELECT agent_id, public_key, created_at FROM agents WHERE public_key = ?`, publicKey))
}

func (r *SQLite) scanAgent(row *sql.Row) (*model.Agent, error) {
	var id, createdAt string
	var pub []byte
	if err := row.Scan(&id, &pub, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(model.ErrAgentNotFound, "no such agent")
		}
		return nil, goerr.Wrap(err, "failed to scan agent row")
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, goerr.Wrap(err, "corrupt created_at column", goerr.V("value", createdAt))
	}
	return &model.Agent{ID: model.AgentID(id), PublicKey: pub, CreatedAt: ts}, nil
}

func (r *SQLite) AppendMemory(ctx context.Context, id model.AgentID, encryptedData string) (*model.MemoryRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to begin store transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var registered int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM agents WHERE agent_id = ?`, string(id)).Scan(&registered); err != nil {
		return nil, goerr.Wrap(err, "failed to check agent existence", goerr.V("agent_id", id))
	}
	if registered == 0 {
		return nil, goerr.Wrap(model.ErrAgentNotFound, "no such agent", goerr.V("agent_id", id))
	}

	var maxVersion int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM memories WHERE agent_id = ?`, string(id)).Scan(&maxVersion); err != nil {
		return nil, goerr.Wrap(err, "failed to read max version", goerr.V("agent_id", id))
	}

	rec := &model.MemoryRecord{
		AgentID:       id,
		Version:       maxVersion + 1,
		EncryptedData: encryptedData,
		StoredAt:      time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memories (agent_id, version, encrypted_data, stored_at) VALUES (?, ?, ?, ?)`,
		string(id), rec.Version, rec.EncryptedData, rec.StoredAt.Format(time.RFC3339Nano)); err != nil {
		return nil, goerr.Wrap(err, "failed to insert memory record",
			goerr.V("agent_id", id), goerr.V("version", rec.Version))
	}

	if err := tx.Commit(); err != nil {
		return nil, goerr.Wrap(err, "failed to commit store transaction", goerr.V("agent_id", id))
	}
	return rec, nil
}

func (r *SQLite) LatestMemory(ctx context.Context, id model.AgentID) (*model.MemoryRecord, error) {
	if err := r.ensureAgent(ctx, id); err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT agent_id, version, encrypted_data, stored_at FROM memories
		 WHERE agent_id = ? ORDER BY version DESC LIMIT 1`, string(id))
	rec, err := scanMemory(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *SQLite) ListMemories(ctx context.Context, id model.AgentID) ([]*model.MemoryRecord, error) {
	if err := r.ensureAgent(ctx, id); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT agent_id, version, encrypted_data, stored_at FROM memories
		 WHERE agent_id = ? ORDER BY version ASC`, string(id))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memory records", goerr.V("agent_id", id))
	}
	defer rows.Close()

	var records []*model.MemoryRecord
	for rows.Next() {
		rec, err := scanMemory(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate memory records", goerr.V("agent_id", id))
	}
	return records, nil
}

func (r *SQLite) ClearMemories(ctx context.Context, id model.AgentID) (int, error) {
	if err := r.ensureAgent(ctx, id); err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM memories WHERE agent_id = ?`, string(id))
	if err != nil {
		return 0, goerr.Wrap(err, "failed to clear memory records", goerr.V("agent_id", id))
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count cleared records", goerr.V("agent_id", id))
	}
	return int(deleted), nil
}

func (r *SQLite) Stats(ctx context.Context) (*model.ServiceStats, error) {
	stats := &model.ServiceStats{}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&stats.TotalAgents); err != nil {
		return nil, goerr.Wrap(err, "failed to count agents")
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&stats.TotalMemoryRecords); err != nil {
		return nil, goerr.Wrap(err, "failed to count memory records")
	}
	if stats.TotalAgents > 0 {
		stats.AverageVersionsPerAgent = float64(stats.TotalMemoryRecords) / float64(stats.TotalAgents)
	}
	return stats, nil
}

func (r *SQLite) Close() error {
	return r.db.Close()
}

func (r *SQLite) ensureAgent(ctx context.Context, id model.AgentID) error {
	var exists int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM agents WHERE agent_id = ?`, string(id)).Scan(&exists); err != nil {
		return goerr.Wrap(err, "failed to check agent existence", goerr.V("agent_id", id))
	}
	if exists == 0 {
		return goerr.Wrap(model.ErrAgentNotFound, "no such agent", goerr.V("agent_id", id))
	}
	return nil
}

func scanMemory(scan func(dest ...any) error) (*model.MemoryRecord, error) {
	var id, data, storedAt string
	var version int
	if err := scan(&id, &version, &data, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, goerr.Wrap(err, "failed to scan memory row")
	}
	ts, err := time.Parse(time.RFC3339Nano, storedAt)
	if err != nil {
		return nil, goerr.Wrap(err, "corrupt stored_at column", goerr.V("value", storedAt))
	}
	return &model.MemoryRecord{
		AgentID:       model.AgentID(id),
		Version:       version,
		EncryptedData: data,
		StoredAt:      ts,
	}, nil
}
