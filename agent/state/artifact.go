package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/agent/persistence"
	"github.com/vivekverma239/superfast-ai/types"
)

// ArtifactManager stores the artifacts of one thread, one record each.
type ArtifactManager struct {
	store    persistence.Store
	userID   string
	threadID string
	opts     options
	logger   *zap.Logger
}

var _ Manager[[]ArtifactState] = (*ArtifactManager)(nil)

// NewArtifactManager creates an artifact manager for one thread.
func NewArtifactManager(store persistence.Store, userID, threadID string, opts ...Option) *ArtifactManager {
	o := applyOptions(opts)
	return &ArtifactManager{
		store:    store,
		userID:   userID,
		threadID: threadID,
		opts:     o,
		logger:   o.logger.With(zap.String("component", "artifact_state"), zap.String("thread_id", threadID)),
	}
}

func (m *ArtifactManager) query() persistence.Query {
	return persistence.Query{Collection: CollectionArtifact, UserID: m.userID, ThreadID: m.threadID}
}

func (m *ArtifactManager) key(id string) persistence.Key {
	return persistence.Key{Collection: CollectionArtifact, UserID: m.userID, ThreadID: m.threadID, ID: id}
}

// Load returns the thread's artifacts in creation order.
func (m *ArtifactManager) Load(ctx context.Context) ([]ArtifactState, error) {
	records, err := m.store.List(ctx, m.query())
	if err != nil {
		return nil, stateError("load artifacts", err)
	}
	out := make([]ArtifactState, 0, len(records))
	for _, rec := range records {
		var a ArtifactState
		if err := rec.Decode(&a); err != nil {
			return nil, stateError("decode artifact", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Save replaces the thread's artifact set: listed artifacts are upserted and
// stored artifacts missing from the list are deleted.
func (m *ArtifactManager) Save(ctx context.Context, artifacts []ArtifactState) error {
	existing, err := m.store.List(ctx, m.query())
	if err != nil {
		return stateError("save artifacts", err)
	}
	keep := make(map[string]bool, len(artifacts))
	for i := range artifacts {
		if err := m.put(ctx, &artifacts[i]); err != nil {
			return err
		}
		keep[artifacts[i].ID] = true
	}
	for _, rec := range existing {
		if keep[rec.ID] {
			continue
		}
		if err := m.store.Delete(ctx, rec.Key()); err != nil {
			return stateError("save artifacts", err)
		}
	}
	return nil
}

// Update applies fn to the current set and saves the result.
func (m *ArtifactManager) Update(ctx context.Context, fn func([]ArtifactState) ([]ArtifactState, error)) error {
	return update[[]ArtifactState](ctx, m, fn)
}

// Clear deletes every artifact of the thread.
func (m *ArtifactManager) Clear(ctx context.Context) error {
	return stateError("clear artifacts", m.store.DeleteAll(ctx, m.query()))
}

func (m *ArtifactManager) put(ctx context.Context, a *ArtifactState) error {
	if a.ID == "" {
		a.ID = m.opts.newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.opts.now()
	}
	rec, err := persistence.NewRecord(m.key(a.ID), a)
	if err != nil {
		return stateError("encode artifact", err)
	}
	rec.CreatedAt = a.CreatedAt
	return stateError("save artifact", m.store.Put(ctx, rec))
}

// CreateArtifact stores a new artifact. An empty type means research_report.
func (m *ArtifactManager) CreateArtifact(ctx context.Context, title, artifactType string, content json.RawMessage, metadata map[string]any) (ArtifactState, error) {
	if artifactType == "" {
		artifactType = ArtifactTypeResearchReport
	}
	if len(content) == 0 {
		content = json.RawMessage(`{}`)
	}
	if !json.Valid(content) {
		return ArtifactState{}, invalidField("content", "not valid JSON")
	}
	a := ArtifactState{
		ID:        m.opts.newID(),
		Title:     title,
		Type:      artifactType,
		Content:   content,
		CreatedAt: m.opts.now(),
		Metadata:  metadata,
	}
	if err := m.put(ctx, &a); err != nil {
		return ArtifactState{}, err
	}
	m.logger.Debug("artifact created", zap.String("artifact_id", a.ID), zap.String("type", a.Type))
	return a, nil
}

// GetArtifact returns one artifact.
func (m *ArtifactManager) GetArtifact(ctx context.Context, id string) (*ArtifactState, error) {
	rec, err := m.store.Get(ctx, m.key(id))
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, notFound("artifact", id)
	}
	if err != nil {
		return nil, stateError("get artifact", err)
	}
	var a ArtifactState
	if err := rec.Decode(&a); err != nil {
		return nil, stateError("decode artifact", err)
	}
	return &a, nil
}

// UpdateArtifact applies patch to one artifact. A title change is mirrored
// into object content under "title".
func (m *ArtifactManager) UpdateArtifact(ctx context.Context, id string, patch ArtifactPatch) (*ArtifactState, error) {
	a, err := m.GetArtifact(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(patch.Content) > 0 {
		merged, err := mergeJSONObject(a.Content, patch.Content)
		if err != nil {
			return nil, err
		}
		a.Content = merged
	}
	if patch.Title != nil {
		a.Title = *patch.Title
		if isJSONObject(a.Content) {
			titled, err := mergeJSONObject(a.Content, mustMarshal(map[string]string{"title": *patch.Title}))
			if err != nil {
				return nil, err
			}
			a.Content = titled
		}
	}
	for k, v := range patch.Metadata {
		if a.Metadata == nil {
			a.Metadata = make(map[string]any)
		}
		a.Metadata[k] = v
	}
	a.UpdatedAt = timePtr(m.opts.now())

	if err := m.put(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateReportSection merges one section into a research report by slug,
// appending it when the slug is new. A non-nil title renames the report.
func (m *ArtifactManager) UpdateReportSection(ctx context.Context, id string, title *string, patch SectionPatch) (*ArtifactState, error) {
	a, err := m.GetArtifact(ctx, id)
	if err != nil {
		return nil, err
	}

	var report ReportContent
	if len(a.Content) > 0 {
		if err := json.Unmarshal(a.Content, &report); err != nil {
			return nil, invalidField("content", "artifact is not a report")
		}
	}
	if title != nil {
		report.Title = *title
		a.Title = *title
	}
	if patch.Slug != "" {
		report.Sections = mergeSection(report.Sections, patch)
	}

	content, err := json.Marshal(report)
	if err != nil {
		return nil, stateError("encode report", err)
	}
	a.Content = content
	a.UpdatedAt = timePtr(m.opts.now())
	if err := m.put(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteArtifact removes one artifact. Unknown ids are ignored.
func (m *ArtifactManager) DeleteArtifact(ctx context.Context, id string) error {
	return stateError("delete artifact", m.store.Delete(ctx, m.key(id)))
}

func mergeSection(sections []ReportSection, patch SectionPatch) []ReportSection {
	for i := range sections {
		if sections[i].Slug != patch.Slug {
			continue
		}
		if patch.Title != nil {
			sections[i].Title = *patch.Title
		}
		if patch.Content != nil {
			sections[i].Content = *patch.Content
		}
		if patch.References != nil {
			sections[i].References = patch.References
		}
		return sections
	}

	s := ReportSection{Slug: patch.Slug, References: patch.References}
	if patch.Title != nil {
		s.Title = *patch.Title
	}
	if patch.Content != nil {
		s.Content = *patch.Content
	}
	if s.References == nil {
		s.References = []Reference{}
	}
	return append(sections, s)
}

// mergeJSONObject shallow-merges patch into base when both are objects;
// otherwise patch replaces base.
func mergeJSONObject(base, patch json.RawMessage) (json.RawMessage, error) {
	if !json.Valid(patch) {
		return nil, types.NewError(types.ErrValidation, "artifact content patch is not valid JSON")
	}
	var baseObj, patchObj map[string]json.RawMessage
	if json.Unmarshal(patch, &patchObj) != nil || patchObj == nil {
		return patch, nil
	}
	if json.Unmarshal(base, &baseObj) != nil || baseObj == nil {
		return patch, nil
	}
	for k, v := range patchObj {
		baseObj[k] = v
	}
	out, err := json.Marshal(baseObj)
	if err != nil {
		return nil, fmt.Errorf("merge artifact content: %w", err)
	}
	return out, nil
}

func isJSONObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}

func mustMarshal(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
