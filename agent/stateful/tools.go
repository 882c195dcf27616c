package stateful

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/vivekverma239/superfast-ai/agent"
	"github.com/vivekverma239/superfast-ai/agent/agentctx"
	"github.com/vivekverma239/superfast-ai/agent/knowledge"
	"github.com/vivekverma239/superfast-ai/agent/state"
	"github.com/vivekverma239/superfast-ai/llm/tools"
	"github.com/vivekverma239/superfast-ai/types"
)

// Built-in tool names.
const (
	ToolUpdateMemory         = "updateMemory"
	ToolCreateTodo           = "createTodo"
	ToolUpdateTodo           = "updateTodo"
	ToolCreateResearchReport = "createResearchReport"
	ToolReadArtifact         = "readArtifact"
	ToolUpdateArtifact       = "updateArtifact"
	ToolWebSearch            = "webSearch"
	ToolURLLookup            = "urlLookup"
	ToolSimilaritySearch     = "similaritySearchKnowledgeBase"
	ToolAnswerFromDocument   = "answerFromKnowledgeBaseDocument"
)

// factories returns the factories enabled by cfg.
func factories(cfg Config, web tools.WebSearcher, limiter *rate.Limiter) []agent.ToolFactory {
	var out []agent.ToolFactory
	if cfg.IncludeMemory {
		out = append(out, updateMemoryFactory())
	}
	if cfg.IncludeTodoList {
		out = append(out, createTodoFactory(), updateTodoFactory())
	}
	if cfg.IncludeArtifacts {
		out = append(out, createReportFactory(), readArtifactFactory(), updateArtifactFactory())
	}
	if cfg.IncludeWebTools {
		out = append(out, webSearchFactory(web, limiter), urlLookupFactory(web, limiter))
	}
	return append(out, similaritySearchFactory(), answerFromDocumentFactory())
}

func unavailable(tool, dependency string) error {
	return types.NewConfigurationError(fmt.Sprintf("%s requires %s in the agent context", tool, dependency)).
		WithContext("toolName", tool)
}

// =============================================================================
// 记忆
// =============================================================================

const updateMemorySchema = `{
  "type": "object",
  "properties": {
    "updates": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "details": {"type": "string"}
        },
        "required": ["details"]
      }
    },
    "invalidate": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["updates"]
}`

type updateMemoryInput struct {
	Updates    []state.MemoryUpdate `json:"updates"`
	Invalidate []string             `json:"invalidate,omitempty"`
}

func updateMemoryFactory() agent.ToolFactory {
	return agent.ToolFactory{
		Name:     ToolUpdateMemory,
		Category: tools.CategoryMemory,
		Create: func(c *agentctx.Context) (*tools.Tool, error) {
			if c.Memory == nil {
				return nil, unavailable(ToolUpdateMemory, "a memory manager")
			}
			memory := c.Memory
			return &tools.Tool{
				Name:        ToolUpdateMemory,
				Description: "Update the memory with new information. Entries with an id edit that memory, entries without one are added, ids in invalidate are removed.",
				Category:    tools.CategoryMemory,
				InputSchema: json.RawMessage(updateMemorySchema),
				Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
					in, err := tools.ParseInput[updateMemoryInput](raw)
					if err != nil {
						return nil, err
					}
					entries, err := memory.Apply(ctx, in.Updates, in.Invalidate)
					if err != nil {
						return nil, err
					}
					return map[string]any{"success": true, "memory": entries}, nil
				},
			}, nil
		},
	}
}

// =============================================================================
// 待办
// =============================================================================

const createTodoSchema = `{
  "type": "object",
  "properties": {
    "tasks": {"type": "array", "items": {"type": "string"}, "minItems": 1}
  },
  "required": ["tasks"]
}`

const updateTodoSchema = `{
  "type": "object",
  "properties": {
    "addTasks": {"type": "array", "items": {"type": "string"}},
    "updateTasks": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string"},
          "status": {"type": "string", "enum": ["pending", "in_progress", "completed"]}
        },
        "required": ["id", "status"]
      }
    }
  }
}`

type createTodoInput struct {
	Tasks []string `json:"tasks"`
}

type todoStatusUpdate struct {
	ID     string           `json:"id"`
	Status state.TodoStatus `json:"status"`
}

type updateTodoInput struct {
	AddTasks    []string           `json:"addTasks,omitempty"`
	UpdateTasks []todoStatusUpdate `json:"updateTasks,omitempty"`
}

func addTasks(ctx context.Context, todos *state.TodoManager, tasks []string) ([]state.TodoState, error) {
	created := make([]state.TodoState, 0, len(tasks))
	for _, task := range tasks {
		t, err := todos.AddTodo(ctx, task, "")
		if err != nil {
			return nil, err
		}
		created = append(created, t)
	}
	return created, nil
}

func createTodoFactory() agent.ToolFactory {
	return agent.ToolFactory{
		Name:     ToolCreateTodo,
		Category: tools.CategoryTodo,
		Create: func(c *agentctx.Context) (*tools.Tool, error) {
			if c.Todos == nil {
				return nil, unavailable(ToolCreateTodo, "a todo manager")
			}
			todos := c.Todos
			return &tools.Tool{
				Name:        ToolCreateTodo,
				Description: "Create todo items for the current thread, one per task.",
				Category:    tools.CategoryTodo,
				InputSchema: json.RawMessage(createTodoSchema),
				Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
					in, err := tools.ParseInput[createTodoInput](raw)
					if err != nil {
						return nil, err
					}
					created, err := addTasks(ctx, todos, in.Tasks)
					if err != nil {
						return nil, err
					}
					return map[string]any{"success": true, "todos": created}, nil
				},
			}, nil
		},
	}
}

func updateTodoFactory() agent.ToolFactory {
	return agent.ToolFactory{
		Name:     ToolUpdateTodo,
		Category: tools.CategoryTodo,
		Create: func(c *agentctx.Context) (*tools.Tool, error) {
			if c.Todos == nil {
				return nil, unavailable(ToolUpdateTodo, "a todo manager")
			}
			todos := c.Todos
			return &tools.Tool{
				Name:        ToolUpdateTodo,
				Description: "Add tasks to the todo list and change the status of existing tasks.",
				Category:    tools.CategoryTodo,
				InputSchema: json.RawMessage(updateTodoSchema),
				Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
					in, err := tools.ParseInput[updateTodoInput](raw)
					if err != nil {
						return nil, err
					}
					if _, err := addTasks(ctx, todos, in.AddTasks); err != nil {
						return nil, err
					}
					for _, u := range in.UpdateTasks {
						status := u.Status
						if err := todos.UpdateTodo(ctx, u.ID, state.TodoPatch{Status: &status}); err != nil {
							return nil, err
						}
					}
					list, err := todos.Load(ctx)
					if err != nil {
						return nil, err
					}
					return map[string]any{"success": true, "todos": list}, nil
				},
			}, nil
		},
	}
}

// =============================================================================
// 产出物
// =============================================================================

const referenceSchema = `{
  "type": "object",
  "properties": {
    "id": {"type": "string"},
    "title": {"type": "string"},
    "url": {"type": "string"}
  },
  "required": ["id", "title"]
}`

var createReportSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "sections": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "slug": {"type": "string"},
          "title": {"type": "string"},
          "content": {"type": "string"},
          "references": {"type": "array", "items": ` + referenceSchema + `}
        },
        "required": ["slug", "title", "content"]
      }
    }
  },
  "required": ["title"]
}`

var updateArtifactSchema = `{
  "type": "object",
  "properties": {
    "id": {"type": "string"},
    "title": {"type": "string"},
    "sectionToUpdate": {
      "type": "object",
      "properties": {
        "slug": {"type": "string"},
        "title": {"type": "string"},
        "content": {"type": "string"},
        "references": {"type": "array", "items": ` + referenceSchema + `}
      },
      "required": ["slug"]
    }
  },
  "required": ["id"]
}`

const readArtifactSchema = `{
  "type": "object",
  "properties": {"id": {"type": "string"}},
  "required": ["id"]
}`

type readArtifactInput struct {
	ID string `json:"id"`
}

type updateArtifactInput struct {
	ID              string              `json:"id"`
	Title           *string             `json:"title,omitempty"`
	SectionToUpdate *state.SectionPatch `json:"sectionToUpdate,omitempty"`
}

func createReportFactory() agent.ToolFactory {
	return agent.ToolFactory{
		Name:     ToolCreateResearchReport,
		Category: tools.CategoryArtifact,
		Create: func(c *agentctx.Context) (*tools.Tool, error) {
			if c.Artifacts == nil {
				return nil, unavailable(ToolCreateResearchReport, "an artifact manager")
			}
			artifacts := c.Artifacts
			return &tools.Tool{
				Name:        ToolCreateResearchReport,
				Description: "Create a research report artifact made of titled sections with references.",
				Category:    tools.CategoryArtifact,
				InputSchema: json.RawMessage(createReportSchema),
				Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
					report, err := tools.ParseInput[state.ReportContent](raw)
					if err != nil {
						return nil, err
					}
					if report.Sections == nil {
						report.Sections = []state.ReportSection{}
					}
					for i := range report.Sections {
						if report.Sections[i].References == nil {
							report.Sections[i].References = []state.Reference{}
						}
					}
					content, err := json.Marshal(report)
					if err != nil {
						return nil, err
					}
					a, err := artifacts.CreateArtifact(ctx, report.Title, state.ArtifactTypeResearchReport, content, nil)
					if err != nil {
						return nil, err
					}
					return map[string]any{"success": true, "artifactId": a.ID}, nil
				},
			}, nil
		},
	}
}

func readArtifactFactory() agent.ToolFactory {
	return agent.ToolFactory{
		Name:     ToolReadArtifact,
		Category: tools.CategoryArtifact,
		Create: func(c *agentctx.Context) (*tools.Tool, error) {
			if c.Artifacts == nil {
				return nil, unavailable(ToolReadArtifact, "an artifact manager")
			}
			artifacts := c.Artifacts
			return &tools.Tool{
				Name:        ToolReadArtifact,
				Description: "Read an artifact of the current thread by id.",
				Category:    tools.CategoryArtifact,
				InputSchema: json.RawMessage(readArtifactSchema),
				Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
					in, err := tools.ParseInput[readArtifactInput](raw)
					if err != nil {
						return nil, err
					}
					a, err := artifacts.GetArtifact(ctx, in.ID)
					if err != nil {
						return nil, err
					}
					return map[string]any{"success": true, "artifact": a}, nil
				},
			}, nil
		},
	}
}

func updateArtifactFactory() agent.ToolFactory {
	return agent.ToolFactory{
		Name:     ToolUpdateArtifact,
		Category: tools.CategoryArtifact,
		Create: func(c *agentctx.Context) (*tools.Tool, error) {
			if c.Artifacts == nil {
				return nil, unavailable(ToolUpdateArtifact, "an artifact manager")
			}
			artifacts := c.Artifacts
			return &tools.Tool{
				Name:        ToolUpdateArtifact,
				Description: "Rename a research report and create or update one of its sections by slug.",
				Category:    tools.CategoryArtifact,
				InputSchema: json.RawMessage(updateArtifactSchema),
				Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
					in, err := tools.ParseInput[updateArtifactInput](raw)
					if err != nil {
						return nil, err
					}
					var patch state.SectionPatch
					if in.SectionToUpdate != nil {
						patch = *in.SectionToUpdate
					}
					a, err := artifacts.UpdateReportSection(ctx, in.ID, in.Title, patch)
					if err != nil {
						return nil, err
					}
					return map[string]any{"success": true, "artifact": a}, nil
				},
			}, nil
		},
	}
}

// =============================================================================
// Web
// =============================================================================

const webSearchSchema = `{
  "type": "object",
  "properties": {"query": {"type": "string", "minLength": 1}},
  "required": ["query"]
}`

const urlLookupSchema = `{
  "type": "object",
  "properties": {"url": {"type": "string", "minLength": 1}},
  "required": ["url"]
}`

type webSearchInput struct {
	Query string `json:"query"`
}

type urlLookupInput struct {
	URL string `json:"url"`
}

func webSearchFactory(web tools.WebSearcher, limiter *rate.Limiter) agent.ToolFactory {
	return agent.ToolFactory{
		Name:     ToolWebSearch,
		Category: tools.CategoryWeb,
		Create: func(*agentctx.Context) (*tools.Tool, error) {
			if web == nil {
				return nil, unavailable(ToolWebSearch, "a web searcher")
			}
			return tools.RateLimited(&tools.Tool{
				Name:        ToolWebSearch,
				Description: "Search the web for current information, statistics and sources.",
				Category:    tools.CategoryWeb,
				InputSchema: json.RawMessage(webSearchSchema),
				Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
					in, err := tools.ParseInput[webSearchInput](raw)
					if err != nil {
						return nil, err
					}
					results, err := web.Search(ctx, in.Query)
					if err != nil {
						return nil, err
					}
					return map[string]any{"success": true, "results": results}, nil
				},
			}, limiter), nil
		},
	}
}

func urlLookupFactory(web tools.WebSearcher, limiter *rate.Limiter) agent.ToolFactory {
	return agent.ToolFactory{
		Name:     ToolURLLookup,
		Category: tools.CategoryWeb,
		Create: func(*agentctx.Context) (*tools.Tool, error) {
			if web == nil {
				return nil, unavailable(ToolURLLookup, "a web searcher")
			}
			return tools.RateLimited(&tools.Tool{
				Name:        ToolURLLookup,
				Description: "Fetch a web page and return its readable text.",
				Category:    tools.CategoryWeb,
				InputSchema: json.RawMessage(urlLookupSchema),
				Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
					in, err := tools.ParseInput[urlLookupInput](raw)
					if err != nil {
						return nil, err
					}
					content, err := web.FetchContent(ctx, in.URL)
					if err != nil {
						return nil, err
					}
					return map[string]any{"success": true, "url": in.URL, "content": content}, nil
				},
			}, limiter), nil
		},
	}
}

// =============================================================================
// 知识库
// =============================================================================

const similaritySearchSchema = `{
  "type": "object",
  "properties": {"query": {"type": "string", "minLength": 1}},
  "required": ["query"]
}`

const answerFromDocumentSchema = `{
  "type": "object",
  "properties": {
    "documentId": {"type": "string", "minLength": 1},
    "query": {"type": "string", "minLength": 1}
  },
  "required": ["documentId", "query"]
}`

type similaritySearchInput struct {
	Query string `json:"query"`
}

type answerFromDocumentInput struct {
	DocumentID string `json:"documentId"`
	Query      string `json:"query"`
}

func similaritySearchFactory() agent.ToolFactory {
	return agent.ToolFactory{
		Name:     ToolSimilaritySearch,
		Category: tools.CategoryKnowledge,
		Create: func(c *agentctx.Context) (*tools.Tool, error) {
			if c.KnowledgeBase == nil {
				return nil, unavailable(ToolSimilaritySearch, "a knowledge base")
			}
			kb, userID, folderID := c.KnowledgeBase, c.UserID, c.FolderID
			return &tools.Tool{
				Name:        ToolSimilaritySearch,
				Description: "Search the user's documents for passages similar to the query.",
				Category:    tools.CategoryKnowledge,
				InputSchema: json.RawMessage(similaritySearchSchema),
				Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
					in, err := tools.ParseInput[similaritySearchInput](raw)
					if err != nil {
						return nil, err
					}
					results, err := kb.SearchSimilar(ctx, knowledge.SearchRequest{
						Query:    in.Query,
						UserID:   userID,
						FolderID: folderID,
					})
					if err != nil {
						return nil, err
					}
					return map[string]any{"success": true, "results": results}, nil
				},
			}, nil
		},
	}
}

func answerFromDocumentFactory() agent.ToolFactory {
	return agent.ToolFactory{
		Name:     ToolAnswerFromDocument,
		Category: tools.CategoryKnowledge,
		Create: func(c *agentctx.Context) (*tools.Tool, error) {
			if c.KnowledgeBase == nil {
				return nil, unavailable(ToolAnswerFromDocument, "a knowledge base")
			}
			kb, userID := c.KnowledgeBase, c.UserID
			return &tools.Tool{
				Name:        ToolAnswerFromDocument,
				Description: "Answer a question from one document in the user's knowledge base.",
				Category:    tools.CategoryKnowledge,
				InputSchema: json.RawMessage(answerFromDocumentSchema),
				Execute: func(ctx context.Context, raw json.RawMessage) (any, error) {
					in, err := tools.ParseInput[answerFromDocumentInput](raw)
					if err != nil {
						return nil, err
					}
					answer, err := kb.AnswerFromDocument(ctx, knowledge.AnswerRequest{
						DocumentID: in.DocumentID,
						Query:      in.Query,
						UserID:     userID,
					})
					if err != nil {
						return nil, err
					}
					return map[string]any{"success": true, "text": answer.Text, "sources": answer.Sources}, nil
				},
			}, nil
		},
	}
}
