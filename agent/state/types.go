package state

import (
	"encoding/json"
	"time"

	"github.com/vivekverma239/superfast-ai/types"
)

// MemoryState is a durable free-form note about the user.
type MemoryState struct {
	ID        string     `json:"id"`
	Details   string     `json:"details"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
}

// MemoryUpdate edits the entry with ID, or adds a new entry when ID is empty
// or unknown.
type MemoryUpdate struct {
	ID      string `json:"id,omitempty"`
	Details string `json:"details"`
}

// TodoStatus is the lifecycle of a todo item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// Valid reports whether s is a known status.
func (s TodoStatus) Valid() bool {
	switch s {
	case TodoPending, TodoInProgress, TodoCompleted:
		return true
	}
	return false
}

// Priority of a todo item.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// TodoState is one tracked task.
type TodoState struct {
	ID        string     `json:"id"`
	Task      string     `json:"task"`
	Status    TodoStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Priority  Priority   `json:"priority,omitempty"`
}

// TodoPatch changes selected fields of a todo item.
type TodoPatch struct {
	Task     *string     `json:"task,omitempty"`
	Status   *TodoStatus `json:"status,omitempty"`
	Priority *Priority   `json:"priority,omitempty"`
}

// ArtifactTypeResearchReport is the default artifact type.
const ArtifactTypeResearchReport = "research_report"

// ArtifactState is a structured deliverable attached to a thread.
type ArtifactState struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

// ArtifactPatch changes selected fields of an artifact. Content is merged
// key by key into object content and replaces anything else.
type ArtifactPatch struct {
	Title    *string         `json:"title,omitempty"`
	Content  json.RawMessage `json:"content,omitempty"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

// Reference is a cited source in a report section.
type Reference struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// ReportSection is addressed by its slug, which is stable per artifact.
type ReportSection struct {
	Slug       string      `json:"slug"`
	Title      string      `json:"title"`
	Content    string      `json:"content"`
	References []Reference `json:"references"`
}

// ReportContent is the content of a research_report artifact.
type ReportContent struct {
	Title    string          `json:"title"`
	Sections []ReportSection `json:"sections"`
}

// SectionPatch updates one report section. Nil fields are kept.
type SectionPatch struct {
	Slug       string      `json:"slug"`
	Title      *string     `json:"title,omitempty"`
	Content    *string     `json:"content,omitempty"`
	References []Reference `json:"references,omitempty"`
}

// Snapshot is the combined state of a thread.
type Snapshot struct {
	Memory    []MemoryState   `json:"memory"`
	Todos     []TodoState     `json:"todos"`
	Artifacts []ArtifactState `json:"artifacts"`
	Messages  []types.Message `json:"messages,omitempty"`
}
