// Package sqlitevec provides a vector.Index backed by a sqlite-vec vec0 table.
//
// Every index owns a private in-memory SQLite database, so indexes built for
// different states never share rows.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/H0NEYP0T-466/lettaXrag/pkg/vector"
)

// Index implements vector.Index using SQLite with sqlite-vec.
type Index struct {
	db     *sql.DB
	dims   int
	count  int
	logger *slog.Logger
}

// Config holds configuration for the sqlite-vec index.
type Config struct {
	// Dimensions is the number of dimensions for the embedding vectors.
	// sqlite-vec needs it up front to declare the vec0 column.
	Dimensions uint
}

// New creates an empty sqlite-vec index.
func New(c Config, logger *slog.Logger) (*Index, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each pooled connection to ":memory:" would get its own database.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE vec_rows USING vec0(embedding float[%d])`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Debug("sqlite-vec index created",
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return &Index{
		db:     db,
		dims:   int(c.Dimensions),
		logger: logger,
	}, nil
}

// NewFactory returns a vector.Factory producing sqlite-vec indexes.
func NewFactory(c Config, logger *slog.Logger) vector.Factory {
	return func() (vector.Index, error) {
		return New(c, logger)
	}
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Rebuild clears the table and inserts vectors from position zero.
func (x *Index) Rebuild(ctx context.Context, vectors [][]float32) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM vec_rows`); err != nil {
		return fmt.Errorf("clearing vec0 table: %w", err)
	}
	x.count = 0
	return x.Add(ctx, vectors)
}

// Add inserts vectors after the existing rows. The vec0 rowid is the
// position plus one.
func (x *Index) Add(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	for i, v := range vectors {
		if len(v) != x.dims {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", vector.ErrDimensionMismatch, i, len(v), x.dims)
		}
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vec_rows(rowid, embedding) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, v := range vectors {
		rowID := int64(x.count + i + 1)
		if _, err := stmt.ExecContext(ctx, rowID, serializeFloat32(v)); err != nil {
			return fmt.Errorf("inserting row %d: %w", rowID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	x.count += len(vectors)

	x.logger.Debug("added vectors to sqlite-vec",
		"count", len(vectors),
		"total", x.count,
	)

	return nil
}

// MaxK is the largest k a vec0 KNN query accepts in sqlite-vec's default
// build.
const MaxK = 4096

// Search runs a vec0 KNN query. sqlite-vec reports Euclidean distance, which
// is squared here to match the other backends. k is clamped to the row count
// and to MaxK, so at most MaxK hits are returned.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]vector.Hit, error) {
	if x.count == 0 || k <= 0 {
		return []vector.Hit{}, nil
	}
	k = min(k, x.count, MaxK)
	if len(query) != x.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", vector.ErrDimensionMismatch, len(query), x.dims)
	}

	rows, err := x.db.QueryContext(ctx, `
		SELECT rowid, distance
		FROM vec_rows
		WHERE embedding MATCH ?
			AND k = ?
		ORDER BY distance
	`, serializeFloat32(query), k)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	hits := make([]vector.Hit, 0, k)
	for rows.Next() {
		var (
			rowID    int64
			distance float64
		)
		if err := rows.Scan(&rowID, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		hits = append(hits, vector.Hit{
			Position: int(rowID - 1),
			Distance: float32(distance * distance),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	return hits, nil
}

// Count returns the number of stored vectors.
func (x *Index) Count() int {
	return x.count
}

// Dimensions returns the configured dimension once vectors are stored.
func (x *Index) Dimensions() int {
	if x.count == 0 {
		return 0
	}
	return x.dims
}

// MarshalBinary reads every row in position order and encodes it.
func (x *Index) MarshalBinary() ([]byte, error) {
	rows, err := x.db.Query(`SELECT embedding FROM vec_rows ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("reading vectors: %w", err)
	}
	defer rows.Close()

	vectors := make([][]float32, 0, x.count)
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}
		v, err := deserializeFloat32(blob)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	dims := 0
	if len(vectors) > 0 {
		dims = x.dims
	}
	return vector.EncodeVectors(dims, vectors)
}

// UnmarshalBinary replaces the contents with decoded rows.
func (x *Index) UnmarshalBinary(data []byte) error {
	_, rows, err := vector.DecodeVectors(data)
	if err != nil {
		return err
	}
	return x.Rebuild(context.Background(), rows)
}

// Close releases the database.
func (x *Index) Close() error {
	return x.db.Close()
}

var _ vector.Index = (*Index)(nil)
