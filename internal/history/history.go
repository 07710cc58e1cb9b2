package history

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/John-Robertt/ibdbwatch/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  TEXT    NOT NULL,
	finished_at TEXT    NOT NULL,
	discovered  INTEGER NOT NULL,
	processed   INTEGER NOT NULL,
	ok          INTEGER NOT NULL,
	degraded    INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	added       INTEGER NOT NULL
);
`

// Run 是 run ledger 中的一行（只记录摘要，不记录字段级变化）。
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Discovered int
	Processed  int
	OK         int
	Degraded   int
	Skipped    int
	Total      int
	Added      int
}

// Store 是基于 sqlite 的 run ledger。
type Store struct {
	db *sql.DB
}

// Open 打开（必要时创建）path 处的数据库并确保 schema 存在。
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// 单写者：避免 sqlite 在多连接下出现 SQLITE_BUSY。
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Record 追加一条 run 摘要。
func (s *Store) Record(ctx context.Context, rr domain.RunReport) error {
	if s == nil || s.db == nil {
		return errors.New("history: store 未打开")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (started_at, finished_at, discovered, processed, ok, degraded, skipped, total, added)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rr.StartedAt.UTC().Format(time.RFC3339Nano),
		rr.FinishedAt.UTC().Format(time.RFC3339Nano),
		rr.Discovered, rr.Processed,
		rr.Summary.OK, rr.Summary.Degraded, rr.Summary.Skipped,
		rr.Total, rr.Added,
	)
	return err
}

// Recent 返回最近 n 条 run（新的在前）。
func (s *Store) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, discovered, processed, ok, degraded, skipped, total, added
		 FROM runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Run, 0, n)
	for rows.Next() {
		var (
			r        Run
			started  string
			finished string
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Discovered, &r.Processed, &r.OK, &r.Degraded, &r.Skipped, &r.Total, &r.Added); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
