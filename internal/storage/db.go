// Package storage persists users, chats, messages, projects and skills in
// SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"finch/internal/config"
	"finch/internal/storage/migrations"
)

var (
	// ErrNotFound 表示记录不存在
	ErrNotFound = errors.New("not found")
	// ErrForbidden 表示记录属于其他用户
	ErrForbidden = errors.New("forbidden")
)

// DB 封装数据库连接
type DB struct {
	*sql.DB
	path string
}

// Open 打开数据库连接并执行迁移. ":memory:" opens a private in-memory
// database.
func Open(path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return nil, fmt.Errorf("expand path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(expanded), 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
		path, dsn = expanded, expanded
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	db, err := sql.Open("sqlite", dsn+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := migrations.Run(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &DB{DB: db, path: path}, nil
}

// Path 返回数据库文件路径
func (db *DB) Path() string {
	return db.path
}

// WithTx 在事务中执行函数，自动处理提交或回滚
func (db *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
