package knowledge

import (
	"context"
	"errors"
)

// DefaultSearchLimit 相似度检索默认返回条数
const DefaultSearchLimit = 5

// ErrDocumentNotFound 文档不存在或不属于该用户
var ErrDocumentNotFound = errors.New("document not found")

// SearchRequest 相似度检索请求
type SearchRequest struct {
	Query    string `json:"query"`
	UserID   string `json:"userId"`
	FolderID string `json:"folderId,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func (r SearchRequest) limit() int {
	if r.Limit <= 0 {
		return DefaultSearchLimit
	}
	return r.Limit
}

// SearchResult 检索命中
type SearchResult struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Score    float64        `json:"score,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AnswerRequest 文档问答请求
type AnswerRequest struct {
	DocumentID string `json:"documentId"`
	Query      string `json:"query"`
	UserID     string `json:"userId"`
}

// Source 答案引用的文档片段
type Source struct {
	DocumentID string `json:"documentId"`
	Page       int    `json:"page,omitempty"`
	Excerpt    string `json:"excerpt,omitempty"`
}

// Answer 文档问答结果
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources,omitempty"`
}

// DocumentMetadata 文档元数据
type DocumentMetadata struct {
	ID       string         `json:"id"`
	UserID   string         `json:"userId"`
	Type     string         `json:"type"`
	Title    string         `json:"title,omitempty"`
	FolderID string         `json:"folderId,omitempty"`
	Chunks   int            `json:"chunks,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// KnowledgeBase is the document knowledge capability used by the built-in
// knowledge tools.
type KnowledgeBase interface {
	SearchSimilar(ctx context.Context, req SearchRequest) ([]SearchResult, error)
	AnswerFromDocument(ctx context.Context, req AnswerRequest) (*Answer, error)
	DocumentMetadata(ctx context.Context, documentID, userID string) (*DocumentMetadata, error)
}

// Embedder turns texts into vectors, one per input in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Embed implements Embedder.
func (f EmbedderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}
