package knowledge

import (
	"context"
	"fmt"
)

// MockKnowledgeBase returns canned results. It is the fallback for thread
// contexts without a vector store.
type MockKnowledgeBase struct{}

var _ KnowledgeBase = MockKnowledgeBase{}

func (MockKnowledgeBase) SearchSimilar(_ context.Context, req SearchRequest) ([]SearchResult, error) {
	return []SearchResult{{
		ID:       "mock-1",
		Title:    "Mock Document",
		Content:  "Mock content for query: " + req.Query,
		Score:    0.95,
		Metadata: map[string]any{"source": "mock"},
	}}, nil
}

func (MockKnowledgeBase) AnswerFromDocument(_ context.Context, req AnswerRequest) (*Answer, error) {
	return &Answer{
		Text:    fmt.Sprintf("Mock answer for document %s: %s", req.DocumentID, req.Query),
		Sources: []Source{{DocumentID: req.DocumentID}},
	}, nil
}

func (MockKnowledgeBase) DocumentMetadata(_ context.Context, documentID, userID string) (*DocumentMetadata, error) {
	return &DocumentMetadata{ID: documentID, UserID: userID, Type: "mock-document"}, nil
}
