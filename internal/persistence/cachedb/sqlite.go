package cachedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/language"
	_ "modernc.org/sqlite"
)

var ErrClosed = errors.New("cache closed")

// SQLiteCache is the persistent payload cache. Entries are keyed by
// (type, key, lang) and stored zstd-compressed with an absolute expiry.
type SQLiteCache struct {
	db  *sql.DB
	now func() time.Time

	enc *zstd.Encoder
	dec *zstd.Decoder

	once   sync.Once
	closed atomic.Bool
}

func OpenSQLite(path string) (*SQLiteCache, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, err
	}
	return &SQLiteCache{db: db, now: time.Now, enc: enc, dec: dec}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache_entries (
			type TEXT NOT NULL,
			key TEXT NOT NULL,
			lang TEXT NOT NULL,
			data BLOB NOT NULL,
			raw_size INTEGER NOT NULL,
			stored_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (type, key, lang)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entries_expires ON cache_entries(expires_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// CanonicalLang normalises a language key so "EN", "en-us" and "en_US" share
// cache entries with their canonical BCP 47 form.
func CanonicalLang(lang string) string {
	lang = strings.TrimSpace(strings.ReplaceAll(lang, "_", "-"))
	if lang == "" {
		return "en"
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return strings.ToLower(lang)
	}
	return tag.String()
}

func (c *SQLiteCache) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		_ = c.enc.Close()
		c.dec.Close()
		err = c.db.Close()
	})
	return err
}

// Get returns the decompressed entry, or nil when it is missing or expired.
func (c *SQLiteCache) Get(ctx context.Context, typ, key, lang string) ([]byte, error) {
	if c == nil || c.closed.Load() {
		return nil, ErrClosed
	}
	var blob []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT data FROM cache_entries WHERE type=? AND key=? AND lang=? AND expires_at > ?`,
		typ, key, CanonicalLang(lang), c.now().UnixMilli(),
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s/%s/%s: %w", typ, key, lang, err)
	}
	out, err := c.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("cache decode %s/%s/%s: %w", typ, key, lang, err)
	}
	return out, nil
}

func (c *SQLiteCache) Put(ctx context.Context, typ, key, lang string, data []byte, ttl time.Duration) error {
	if c == nil || c.closed.Load() {
		return ErrClosed
	}
	if ttl <= 0 {
		return fmt.Errorf("cache put %s/%s: ttl must be positive", typ, key)
	}
	now := c.now()
	blob := c.enc.EncodeAll(data, nil)
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cache_entries(type,key,lang,data,raw_size,stored_at,expires_at) VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(type,key,lang) DO UPDATE SET data=excluded.data, raw_size=excluded.raw_size,
		 stored_at=excluded.stored_at, expires_at=excluded.expires_at`,
		typ, key, CanonicalLang(lang), blob, len(data), now.UnixMilli(), now.Add(ttl).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("cache put %s/%s/%s: %w", typ, key, lang, err)
	}
	return nil
}

// PurgeExpired deletes expired entries and returns how many were removed.
func (c *SQLiteCache) PurgeExpired(ctx context.Context) (int64, error) {
	if c == nil || c.closed.Load() {
		return 0, ErrClosed
	}
	res, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, c.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Purge deletes every entry of the given type, or all entries when typ is
// empty.
func (c *SQLiteCache) Purge(ctx context.Context, typ string) (int64, error) {
	if c == nil || c.closed.Load() {
		return 0, ErrClosed
	}
	var (
		res sql.Result
		err error
	)
	if typ == "" {
		res, err = c.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	} else {
		res, err = c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE type=?`, typ)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type EntryStat struct {
	Type      string
	Key       string
	Lang      string
	RawSize   int64
	StoredAt  time.Time
	ExpiresAt time.Time
	Expired   bool
}

func (c *SQLiteCache) Entries(ctx context.Context) ([]EntryStat, error) {
	if c == nil || c.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT type,key,lang,raw_size,stored_at,expires_at FROM cache_entries ORDER BY type,key,lang`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := c.now()
	var out []EntryStat
	for rows.Next() {
		var (
			e                   EntryStat
			storedAt, expiresAt int64
		)
		if err := rows.Scan(&e.Type, &e.Key, &e.Lang, &e.RawSize, &storedAt, &expiresAt); err != nil {
			return nil, err
		}
		e.StoredAt = time.UnixMilli(storedAt)
		e.ExpiresAt = time.UnixMilli(expiresAt)
		e.Expired = !e.ExpiresAt.After(now)
		out = append(out, e)
	}
	return out, rows.Err()
}
