// Package vectorstore keeps embedded CRM chunks in SQLite and answers
// nearest-neighbour queries by brute-force cosine similarity.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/Breeze-CRM-Copilot/agent/contract"
	"gonum.org/v1/gonum/floats"
	_ "modernc.org/sqlite"
)

type Config struct {
	Path string `split_words:"true" default:"copilot.db"`
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS index_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS vectors (
	id              TEXT PRIMARY KEY,
	text            TEXT NOT NULL,
	metadata_json   TEXT NOT NULL DEFAULT '{}',
	embedding_json  TEXT NOT NULL,
	updated_at_unix INTEGER NOT NULL DEFAULT 0
);
`

const metaDimension = "dimension"

// Store is a flat vector index. Its dimension is fixed when the database is
// first created; reopening with another dimension fails.
type Store struct {
	db        *sql.DB
	dimension int
	now       func() time.Time
}

var _ contractx.VectorIndex = (*Store)(nil)

// Open opens or creates the index at path. ":memory:" gives a private
// in-memory index.
func Open(ctx context.Context, path string, dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be > 0", contractx.ErrValidation)
	}

	dsn := ":memory:"
	if strings.TrimSpace(path) != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open vector database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate vector schema: %w", err)
	}

	s := &Store{db: db, dimension: dimension, now: time.Now}
	if err := s.pinDimension(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) pinDimension(ctx context.Context) error {
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = ?`, metaDimension).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx, `INSERT INTO index_meta (key, value) VALUES (?, ?)`, metaDimension, strconv.Itoa(s.dimension))
		if err != nil {
			return fmt.Errorf("store index dimension: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read index dimension: %w", err)
	}

	existing, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("corrupt index dimension %q: %w", stored, err)
	}
	if existing != s.dimension {
		return fmt.Errorf("%w: index was created with %d, configured %d", contractx.ErrDimensionMismatch, existing, s.dimension)
	}
	return nil
}

func (s *Store) Dimension() int {
	return s.dimension
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count vectors: %w", err)
	}
	return n, nil
}

// Upsert writes all records in one transaction. Any record with the wrong
// dimension rejects the whole batch.
func (s *Store) Upsert(ctx context.Context, records []contractx.VectorRecord) error {
	for _, r := range records {
		if strings.TrimSpace(r.ID) == "" {
			return fmt.Errorf("%w: vector record id is empty", contractx.ErrValidation)
		}
		if len(r.Vector) != s.dimension {
			return fmt.Errorf("%w: record %s has %d, index has %d", contractx.ErrDimensionMismatch, r.ID, len(r.Vector), s.dimension)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (id, text, metadata_json, embedding_json, updated_at_unix)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			metadata_json = excluded.metadata_json,
			embedding_json = excluded.embedding_json,
			updated_at_unix = excluded.updated_at_unix
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now().Unix()
	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", r.ID, err)
		}
		if r.Metadata == nil {
			meta = []byte("{}")
		}
		vec, err := json.Marshal(r.Vector)
		if err != nil {
			return fmt.Errorf("encode vector for %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Text, string(meta), string(vec), now); err != nil {
			return fmt.Errorf("upsert vector %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// Query returns the topK records by cosine similarity, best first. Ties
// break on id so repeated queries return the same order.
func (s *Store) Query(ctx context.Context, vector []float64, topK int) ([]contractx.VectorMatch, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", contractx.ErrDimensionMismatch, len(vector), s.dimension)
	}
	if topK <= 0 {
		return []contractx.VectorMatch{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, text, metadata_json, embedding_json FROM vectors`)
	if err != nil {
		return nil, fmt.Errorf("fetch vectors: %w", err)
	}
	defer rows.Close()

	logger := zerolog.Ctx(ctx)
	queryNorm := floats.Norm(vector, 2)
	matches := make([]contractx.VectorMatch, 0)
	for rows.Next() {
		var id, text, metaJSON, vecJSON string
		if err := rows.Scan(&id, &text, &metaJSON, &vecJSON); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}

		var stored []float64
		if err := json.Unmarshal([]byte(vecJSON), &stored); err != nil {
			logger.Warn().Err(err).Str("id", id).Msg("skip vector with corrupt embedding")
			continue
		}
		if len(stored) != s.dimension {
			logger.Warn().Str("id", id).Int("got", len(stored)).Int("want", s.dimension).
				Msg("skip vector with wrong dimension")
			continue
		}
		// Unreadable metadata drops only the metadata; the chunk still ranks.
		var meta map[string]any
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			logger.Warn().Err(err).Str("id", id).Msg("ignore corrupt vector metadata")
			meta = nil
		}

		matches = append(matches, contractx.VectorMatch{
			ID:       id,
			Text:     text,
			Metadata: meta,
			Score:    cosine(vector, queryNorm, stored),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vector rows: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func cosine(query []float64, queryNorm float64, stored []float64) float64 {
	storedNorm := floats.Norm(stored, 2)
	if queryNorm == 0 || storedNorm == 0 {
		return 0
	}
	return floats.Dot(query, stored) / (queryNorm * storedNorm)
}
