package database

import (
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens (and creates if missing) a sqlite database file.
// Use ":memory:" for an ephemeral database in tests.
func OpenSQLite(filePath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, err
	}
	// sqlite only supports one writer at a time
	db.SetMaxOpenConns(1)
	return db, nil
}

// StmtCache caches prepared sql statements, mapping query string to stmt.
type StmtCache struct {
	db *sql.DB
	m  sync.Map
}

func NewStmtCache(db *sql.DB) *StmtCache {
	return &StmtCache{db: db}
}

func (sc *StmtCache) Prepare(query string) (*sql.Stmt, error) {
	cached, _ := sc.m.Load(query)
	if cached == nil {
		stmt, err := sc.db.Prepare(query)
		if err != nil {
			return nil, err
		}
		sc.m.Store(query, stmt)
		cached = stmt
	}
	return cached.(*sql.Stmt), nil
}

func (sc *StmtCache) Clear() {
	sc.m.Range(func(k, v interface{}) bool {
		_ = v.(*sql.Stmt).Close()
		sc.m.Delete(k)
		return true
	})
}
