package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/pulseline-ai/agent-backend/internal/model"
	"github.com/pulseline-ai/agent-backend/internal/service"
)

// QueryEmbedder turns query text into vectors. Injected; the repository
// never embeds inline.
type QueryEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingCache caches query vectors across requests and replicas.
type EmbeddingCache interface {
	Get(ctx context.Context, query string) ([]float32, bool)
	Set(ctx context.Context, query string, vec []float32)
}

// KnowledgeRepo implements service.VectorSearcher over a pgvector table.
type KnowledgeRepo struct {
	pool     *pgxpool.Pool
	embedder QueryEmbedder
	cache    EmbeddingCache // nil disables caching
}

// NewKnowledgeRepo creates a KnowledgeRepo.
func NewKnowledgeRepo(pool *pgxpool.Pool, embedder QueryEmbedder, cache EmbeddingCache) *KnowledgeRepo {
	return &KnowledgeRepo{pool: pool, embedder: embedder, cache: cache}
}

var _ service.VectorSearcher = (*KnowledgeRepo)(nil)

// SimilaritySearch embeds the query (through the cache when available) and
// returns the k nearest chunks by cosine distance, smaller = closer.
func (r *KnowledgeRepo) SimilaritySearch(ctx context.Context, query string, k int) ([]model.Chunk, error) {
	vec, err := r.queryVector(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository.SimilaritySearch: embed: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, content, metadata, embedding <=> $1::vector AS distance
		FROM knowledge_chunks
		ORDER BY embedding <=> $1::vector
		LIMIT $2`, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, fmt.Errorf("repository.SimilaritySearch: query: %w", err)
	}
	defer rows.Close()

	var chunks []model.Chunk
	for rows.Next() {
		var (
			id       string
			content  string
			metaJSON []byte
			distance float64
		)
		if err := rows.Scan(&id, &content, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("repository.SimilaritySearch: scan: %w", err)
		}
		chunks = append(chunks, model.Chunk{
			ID:       id,
			Content:  content,
			Metadata: decodeMetadata(metaJSON),
			Distance: distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.SimilaritySearch: rows: %w", err)
	}
	return chunks, nil
}

func (r *KnowledgeRepo) queryVector(ctx context.Context, query string) ([]float32, error) {
	if r.cache != nil {
		if vec, ok := r.cache.Get(ctx, query); ok {
			return vec, nil
		}
	}
	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}
	if r.cache != nil {
		r.cache.Set(ctx, query, vecs[0])
	}
	return vecs[0], nil
}

// decodeMetadata maps the stored JSON onto the typed metadata, carrying
// unknown keys in Extra rather than losing them.
func decodeMetadata(raw []byte) model.ChunkMetadata {
	var kv map[string]any
	if err := json.Unmarshal(raw, &kv); err != nil {
		slog.Warn("malformed chunk metadata", "error", err)
		return model.ChunkMetadata{SourceType: model.SourceTypeFile}
	}

	meta := model.ChunkMetadata{SourceType: model.SourceTypeFile}
	for key, val := range kv {
		switch key {
		case "source":
			meta.Source, _ = val.(string)
		case "source_type":
			if s, ok := val.(string); ok {
				meta.SourceType = s
			}
		case "is_override":
			meta.IsOverride, _ = val.(bool)
		case "priority":
			switch v := val.(type) {
			case float64:
				meta.Priority = int(v)
			case string:
				meta.Priority, _ = strconv.Atoi(v)
			}
		case "timestamp":
			meta.Timestamp, _ = val.(string)
		default:
			if meta.Extra == nil {
				meta.Extra = make(map[string]string)
			}
			meta.Extra[key] = fmt.Sprint(val)
		}
	}
	return meta
}

func encodeMetadata(meta model.ChunkMetadata) ([]byte, error) {
	kv := map[string]any{
		"source":      meta.Source,
		"source_type": meta.SourceType,
		"is_override": meta.IsOverride,
		"priority":    meta.Priority,
	}
	if meta.Timestamp != "" {
		kv["timestamp"] = meta.Timestamp
	}
	for k, v := range meta.Extra {
		kv[k] = v
	}
	return json.Marshal(kv)
}

// BulkInsert stores chunks with their embedding vectors using pgx batching.
// Used by ingestion tooling; the pipeline itself is read-only here.
func (r *KnowledgeRepo) BulkInsert(ctx context.Context, chunks []model.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("repository.BulkInsert: chunk count (%d) != vector count (%d)", len(chunks), len(vectors))
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()

	for i, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.New().String()
		}
		metaJSON, err := encodeMetadata(c.Metadata)
		if err != nil {
			return fmt.Errorf("repository.BulkInsert: chunk %d metadata: %w", i, err)
		}
		batch.Queue(`
			INSERT INTO knowledge_chunks (id, content, metadata, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`,
			id, c.Content, metaJSON, pgvector.NewVector(vectors[i]), now,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(chunks); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("repository.BulkInsert: chunk %d: %w", i, err)
		}
	}
	return nil
}

// Migrate creates the knowledge table and index when missing. The SQL also
// ships standalone under migrations/ for managed environments.
func (r *KnowledgeRepo) Migrate(ctx context.Context, embeddingDims int) error {
	if embeddingDims <= 0 {
		embeddingDims = 1536
	}
	_, err := r.pool.Exec(ctx, fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS knowledge_chunks (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_embedding
			ON knowledge_chunks USING hnsw (embedding vector_cosine_ops);
	`, embeddingDims))
	if err != nil {
		return fmt.Errorf("repository.Migrate: %w", err)
	}
	return nil
}
