// Package sqlite provides a pure-Go SQLite implementation of the storage
// interfaces. It has no native dependencies and is the default backend;
// vector similarity is computed in-process over an embedding candidate pool.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/kumar-shivang/work-tracker/internal/storage"
	"github.com/kumar-shivang/work-tracker/pkg/types"
)

// searchMaxCandidates caps the number of embeddings loaded into memory for a
// single similarity query. Most-recent rows are preferred when the table is
// larger than the cap.
const searchMaxCandidates = 10_000

// Store implements storage.Store using SQLite.
type Store struct {
	db        *sql.DB
	dimension int
}

// Ensure Store satisfies the full storage contract at compile time.
var _ storage.Store = (*Store)(nil)

// New opens (or creates) a SQLite database at path and applies the schema.
// Use ":memory:" for an ephemeral store in tests. dimension is the fixed
// embedding dimension every stored vector must match.
func New(path string, dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", storage.ErrInvalidInput)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// modernc.org/sqlite serializes writes itself; a single connection
	// avoids SQLITE_BUSY on concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to apply schema: %w", err)
	}

	return &Store{db: db, dimension: dimension}, nil
}

// Dimension returns the fixed embedding dimension of the store.
func (s *Store) Dimension() int { return s.dimension }

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreMemory appends a new immutable memory row.
func (s *Store) StoreMemory(ctx context.Context, memory *types.Memory) error {
	if memory == nil {
		return storage.ErrInvalidInput
	}
	if memory.ID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	if memory.Content == "" {
		return fmt.Errorf("%w: memory content is required", storage.ErrInvalidInput)
	}
	if !memory.Type.Valid() {
		return fmt.Errorf("%w: unknown memory type %q", storage.ErrInvalidInput, memory.Type)
	}
	if len(memory.Vector) != s.dimension {
		return fmt.Errorf("%w: got %d, store dimension is %d",
			storage.ErrDimensionMismatch, len(memory.Vector), s.dimension)
	}

	metadataJSON, err := marshalMetadata(memory.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal metadata: %w", err)
	}

	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (id, content, memory_type, metadata, embedding, dimension, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		memory.ID, memory.Content, string(memory.Type), metadataJSON,
		serializeEmbedding(memory.Vector), s.dimension, memory.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to store memory: %w", err)
	}
	return nil
}

// SearchMemories ranks stored memories by cosine distance to the query
// vector. The candidate pool is loaded most-recent first and scored in
// process; ties on distance break toward the newer memory.
func (s *Store) SearchMemories(ctx context.Context, query []float32, typeFilter types.MemoryType, limit int) ([]types.ScoredMemory, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, store dimension is %d",
			storage.ErrDimensionMismatch, len(query), s.dimension)
	}
	limit = storage.NormalizeLimit(limit, 100)

	querySQL := `
		SELECT id, content, memory_type, metadata, embedding, created_at
		FROM memories`
	args := []interface{}{}
	if typeFilter != "" {
		querySQL += ` WHERE memory_type = ?`
		args = append(args, string(typeFilter))
	}
	querySQL += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, searchMaxCandidates)

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scored []types.ScoredMemory
	for rows.Next() {
		mem, blob, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: search scan failed: %w", err)
		}
		vec, err := deserializeEmbedding(blob, s.dimension)
		if err != nil {
			// Skip rows with corrupt embeddings rather than failing the query.
			continue
		}
		mem.Vector = vec
		scored = append(scored, types.ScoredMemory{
			Memory:   mem,
			Distance: 1 - cosineSimilarity(query, vec),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: search iteration failed: %w", err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Distance != scored[j].Distance {
			return scored[i].Distance < scored[j].Distance
		}
		return scored[i].Memory.CreatedAt.After(scored[j].Memory.CreatedAt)
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// RetrieveByRange returns memories with created_at in [start, end],
// most recent first.
func (s *Store) RetrieveByRange(ctx context.Context, start, end time.Time, typeFilter types.MemoryType, limit int) ([]types.Memory, error) {
	limit = storage.NormalizeLimit(limit, 500)

	querySQL := `
		SELECT id, content, memory_type, metadata, embedding, created_at
		FROM memories
		WHERE created_at >= ? AND created_at <= ?`
	args := []interface{}{start.UTC(), end.UTC()}
	if typeFilter != "" {
		querySQL += ` AND memory_type = ?`
		args = append(args, string(typeFilter))
	}
	querySQL += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: range query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []types.Memory
	for rows.Next() {
		mem, blob, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: range scan failed: %w", err)
		}
		if vec, err := deserializeEmbedding(blob, s.dimension); err == nil {
			mem.Vector = vec
		}
		memories = append(memories, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: range iteration failed: %w", err)
	}
	return memories, nil
}

// scanMemory reads one memories row. The embedding blob is returned raw so
// callers can decide whether deserialization failures are fatal.
func scanMemory(rows *sql.Rows) (types.Memory, []byte, error) {
	var (
		mem          types.Memory
		memType      string
		metadataJSON sql.NullString
		blob         []byte
	)
	if err := rows.Scan(&mem.ID, &mem.Content, &memType, &metadataJSON, &blob, &mem.CreatedAt); err != nil {
		return types.Memory{}, nil, err
	}
	mem.Type = types.MemoryType(memType)
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &mem.Metadata); err != nil {
			return types.Memory{}, nil, fmt.Errorf("metadata unmarshal: %w", err)
		}
	}
	return mem, blob, nil
}

func marshalMetadata(metadata map[string]interface{}) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// serializeEmbedding packs a float32 vector into a little-endian blob,
// 4 bytes per component.
func serializeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeEmbedding unpacks a blob produced by serializeEmbedding.
// dimension validates the buffer size.
func deserializeEmbedding(buf []byte, dimension int) ([]float32, error) {
	if len(buf) != dimension*4 {
		return nil, fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", dimension*4, len(buf))
	}
	vec := make([]float32, dimension)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec, nil
}

// cosineSimilarity computes the cosine of the angle between two equal-length
// vectors. Zero vectors yield similarity 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
