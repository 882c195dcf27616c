package knowledge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/llm"
	"github.com/vivekverma239/superfast-ai/types"
)

const answerPrompt = `Answer the question using only the document excerpts below. ` +
	`If the excerpts do not contain the answer, say so.`

// answerChunks 文档问答时取回的片段数
const answerChunks = 4

// VectorKnowledgeBase 基于向量检索的知识库
type VectorKnowledgeBase struct {
	embedder Embedder
	store    VectorStore
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

var _ KnowledgeBase = (*VectorKnowledgeBase)(nil)

// NewVectorKnowledgeBase 创建知识库。provider 为 nil 时 AnswerFromDocument
// 直接返回最相关的片段。
func NewVectorKnowledgeBase(embedder Embedder, store VectorStore, provider llm.Provider, model string, logger *zap.Logger) *VectorKnowledgeBase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorKnowledgeBase{
		embedder: embedder,
		store:    store,
		provider: provider,
		model:    model,
		logger:   logger.With(zap.String("component", "knowledge_base")),
	}
}

func (kb *VectorKnowledgeBase) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := kb.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	return vecs[0], nil
}

// DocumentInput 一个待入库的文档，Pages 每页生成一个片段
type DocumentInput struct {
	ID       string
	UserID   string
	FolderID string
	Title    string
	Pages    []string
	Metadata map[string]any
}

// AddDocument 对文档分页向量化后写入存储
func (kb *VectorKnowledgeBase) AddDocument(ctx context.Context, doc DocumentInput) error {
	if doc.ID == "" || doc.UserID == "" {
		return types.NewError(types.ErrValidation, "document id and user id are required")
	}
	if len(doc.Pages) == 0 {
		return nil
	}
	vecs, err := kb.embedder.Embed(ctx, doc.Pages)
	if err != nil {
		return fmt.Errorf("embed document %s: %w", doc.ID, err)
	}
	if len(vecs) != len(doc.Pages) {
		return fmt.Errorf("embed document %s: got %d vectors for %d pages", doc.ID, len(vecs), len(doc.Pages))
	}
	chunks := make([]Chunk, len(doc.Pages))
	for i, page := range doc.Pages {
		chunks[i] = Chunk{
			ID:         fmt.Sprintf("%s#%d", doc.ID, i+1),
			DocumentID: doc.ID,
			UserID:     doc.UserID,
			FolderID:   doc.FolderID,
			Title:      doc.Title,
			Content:    page,
			Page:       i + 1,
			Embedding:  vecs[i],
			Metadata:   doc.Metadata,
		}
	}
	return kb.store.Upsert(ctx, chunks)
}

// SearchSimilar 返回与查询最相似的文档，每个文档只保留得分最高的片段
func (kb *VectorKnowledgeBase) SearchSimilar(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, types.NewError(types.ErrValidation, "query is required")
	}
	vec, err := kb.embedOne(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	// 多取一些片段，去重后仍能凑满 limit
	hits, err := kb.store.Search(ctx, vec, Filter{UserID: req.UserID, FolderID: req.FolderID}, req.limit()*answerChunks)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	seen := make(map[string]bool)
	out := make([]SearchResult, 0, req.limit())
	for _, h := range hits {
		if seen[h.Chunk.DocumentID] {
			continue
		}
		seen[h.Chunk.DocumentID] = true
		meta := map[string]any{"page": h.Chunk.Page}
		if h.Chunk.FolderID != "" {
			meta["folderId"] = h.Chunk.FolderID
		}
		for k, v := range h.Chunk.Metadata {
			meta[k] = v
		}
		out = append(out, SearchResult{
			ID:       h.Chunk.DocumentID,
			Title:    h.Chunk.Title,
			Content:  h.Chunk.Content,
			Score:    h.Score,
			Metadata: meta,
		})
		if len(out) == req.limit() {
			break
		}
	}
	kb.logger.Debug("similarity search", zap.String("user_id", req.UserID), zap.Int("results", len(out)))
	return out, nil
}

// AnswerFromDocument 检索文档内最相关片段并让模型作答
func (kb *VectorKnowledgeBase) AnswerFromDocument(ctx context.Context, req AnswerRequest) (*Answer, error) {
	vec, err := kb.embedOne(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	hits, err := kb.store.Search(ctx, vec, Filter{UserID: req.UserID, DocumentID: req.DocumentID}, answerChunks)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, req.DocumentID)
	}

	sources := make([]Source, len(hits))
	var excerpts strings.Builder
	for i, h := range hits {
		sources[i] = Source{DocumentID: req.DocumentID, Page: h.Chunk.Page, Excerpt: excerpt(h.Chunk.Content)}
		fmt.Fprintf(&excerpts, "[page %d]\n%s\n\n", h.Chunk.Page, h.Chunk.Content)
	}

	if kb.provider == nil {
		return &Answer{Text: strings.TrimSpace(excerpts.String()), Sources: sources}, nil
	}

	resp, err := kb.provider.Completion(ctx, &llm.ChatRequest{
		Model: kb.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: answerPrompt},
			{Role: llm.RoleUser, Content: excerpts.String() + "Question: " + req.Query},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("answer from document %s: %w", req.DocumentID, err)
	}
	msg, _ := resp.FirstMessage()
	return &Answer{Text: msg.Content, Sources: sources}, nil
}

// DocumentMetadata 根据已入库的片段汇总文档信息
func (kb *VectorKnowledgeBase) DocumentMetadata(ctx context.Context, documentID, userID string) (*DocumentMetadata, error) {
	chunks, err := kb.store.Chunks(ctx, Filter{UserID: userID, DocumentID: documentID})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}
	first := chunks[0]
	return &DocumentMetadata{
		ID:       documentID,
		UserID:   userID,
		Type:     "document",
		Title:    first.Title,
		FolderID: first.FolderID,
		Chunks:   len(chunks),
		Extra:    first.Metadata,
	}, nil
}

func excerpt(s string) string {
	const max = 200
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
