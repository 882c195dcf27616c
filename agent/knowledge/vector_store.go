package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Chunk 是向量存储中的一段文档内容
type Chunk struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"documentId"`
	UserID     string         `json:"userId"`
	FolderID   string         `json:"folderId,omitempty"`
	Title      string         `json:"title,omitempty"`
	Content    string         `json:"content"`
	Page       int            `json:"page,omitempty"`
	Embedding  []float32      `json:"-"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Filter 限定检索范围；空字段不参与过滤。UserID 必填。
type Filter struct {
	UserID     string
	FolderID   string
	DocumentID string
}

func (f Filter) match(c *Chunk) bool {
	if c.UserID != f.UserID {
		return false
	}
	if f.FolderID != "" && c.FolderID != f.FolderID {
		return false
	}
	if f.DocumentID != "" && c.DocumentID != f.DocumentID {
		return false
	}
	return true
}

// ScoredChunk 检索结果
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// VectorStore 向量存储接口
type VectorStore interface {
	// Upsert 按 ID 写入或替换
	Upsert(ctx context.Context, chunks []Chunk) error
	// Search 返回与 embedding 最相似的 topK 个片段，按分数降序
	Search(ctx context.Context, embedding []float32, filter Filter, topK int) ([]ScoredChunk, error)
	// Chunks 返回满足过滤条件的全部片段，按写入顺序
	Chunks(ctx context.Context, filter Filter) ([]Chunk, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
}

// InMemoryVectorStore 内存向量存储（用于测试和小规模应用）
type InMemoryVectorStore struct {
	mu     sync.RWMutex
	chunks []Chunk
	index  map[string]int
	logger *zap.Logger
}

var _ VectorStore = (*InMemoryVectorStore)(nil)

// NewInMemoryVectorStore 创建内存向量存储
func NewInMemoryVectorStore(logger *zap.Logger) *InMemoryVectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryVectorStore{
		index:  make(map[string]int),
		logger: logger.With(zap.String("component", "vector_store")),
	}
}

// Upsert 写入片段
func (s *InMemoryVectorStore) Upsert(ctx context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		if c.UserID == "" {
			return fmt.Errorf("chunk %s has no user", c.ID)
		}
	}
	for _, c := range chunks {
		c.Embedding = append([]float32(nil), c.Embedding...)
		if i, ok := s.index[c.ID]; ok {
			s.chunks[i] = c
			continue
		}
		s.index[c.ID] = len(s.chunks)
		s.chunks = append(s.chunks, c)
	}

	s.logger.Debug("chunks upserted", zap.Int("count", len(chunks)), zap.Int("total", len(s.chunks)))
	return nil
}

// Search 余弦相似度检索
func (s *InMemoryVectorStore) Search(ctx context.Context, embedding []float32, filter Filter, topK int) ([]ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]ScoredChunk, 0)
	for i := range s.chunks {
		c := &s.chunks[i]
		if !filter.match(c) {
			continue
		}
		results = append(results, ScoredChunk{Chunk: *c, Score: cosineSimilarity(embedding, c.Embedding)})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Chunks 按过滤条件列出片段
func (s *InMemoryVectorStore) Chunks(ctx context.Context, filter Filter) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Chunk, 0)
	for i := range s.chunks {
		if filter.match(&s.chunks[i]) {
			out = append(out, s.chunks[i])
		}
	}
	return out, nil
}

// Delete 删除片段，不存在的 ID 忽略
func (s *InMemoryVectorStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if !drop[c.ID] {
			kept = append(kept, c)
		}
	}
	deleted := len(s.chunks) - len(kept)
	s.chunks = kept
	s.index = make(map[string]int, len(kept))
	for i, c := range kept {
		s.index[c.ID] = i
	}

	s.logger.Debug("chunks deleted", zap.Int("deleted", deleted), zap.Int("remaining", len(kept)))
	return nil
}

// Count 返回片段数量
func (s *InMemoryVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// cosineSimilarity 计算余弦相似度；维度不同或零向量返回 0
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
