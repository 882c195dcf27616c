package stateful

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vivekverma239/superfast-ai/agent"
	"github.com/vivekverma239/superfast-ai/agent/agentctx"
	"github.com/vivekverma239/superfast-ai/agent/knowledge"
	"github.com/vivekverma239/superfast-ai/agent/persistence"
	"github.com/vivekverma239/superfast-ai/agent/state"
	"github.com/vivekverma239/superfast-ai/config"
	"github.com/vivekverma239/superfast-ai/llm"
	"github.com/vivekverma239/superfast-ai/llm/tools"
	"github.com/vivekverma239/superfast-ai/testutil/mocks"
	"github.com/vivekverma239/superfast-ai/types"
)

// =============================================================================
// 测试辅助
// =============================================================================

type fakeSearcher struct {
	queries []string
	urls    []string
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]tools.WebSearchResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return []tools.WebSearchResult{{Title: "Go", URL: "https://go.dev", Snippet: "The Go language"}}, nil
}

func (f *fakeSearcher) FetchContent(_ context.Context, pageURL string) (string, error) {
	f.urls = append(f.urls, pageURL)
	if f.err != nil {
		return "", f.err
	}
	return "page text", nil
}

func newContext(t *testing.T, opts agentctx.ThreadOptions) *agentctx.Context {
	t.Helper()
	f := agentctx.NewFactory(agentctx.Dependencies{
		Store:       persistence.NewMemoryStore(),
		Storage:     agentctx.NewMemoryStorage(),
		VectorStore: knowledge.NewInMemoryVectorStore(nil),
	})
	return f.CreateThread(opts)
}

func allOn() Config {
	return Config{
		AgentConfig:      config.AgentConfig{Model: "test-model", MaxSteps: 3},
		IncludeMemory:    true,
		IncludeTodoList:  true,
		IncludeWebTools:  true,
		IncludeArtifacts: true,
	}
}

func newAgent(t *testing.T, p llm.Provider, cfg Config, actx *agentctx.Context, opts ...Option) *Agent {
	t.Helper()
	if actx == nil {
		actx = newContext(t, agentctx.DefaultThreadOptions("u1", "t1"))
	}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	a, err := New(cfg, agent.Deps{Provider: p, Context: actx}, opts...)
	require.NoError(t, err)
	return a
}

// invoke 物化并调用指定工具，返回解码后的输出
func invoke(t *testing.T, a *Agent, name, input string) map[string]any {
	t.Helper()
	ctx := context.Background()
	got, err := a.GetTools(ctx, tools.Filter{Required: []string{name}})
	require.NoError(t, err)
	raw, err := got[name].Invoke(ctx, json.RawMessage(input))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

// =============================================================================
// 构造与开关
// =============================================================================

func TestNew_RegistersFactoriesByFlag(t *testing.T) {
	knowledgeTools := []string{ToolAnswerFromDocument, ToolSimilaritySearch}

	tests := []struct {
		name string
		cfg  func(*Config)
		want []string
	}{
		{
			name: "all off",
			cfg:  func(c *Config) {},
			want: knowledgeTools,
		},
		{
			name: "memory",
			cfg:  func(c *Config) { c.IncludeMemory = true },
			want: []string{ToolAnswerFromDocument, ToolSimilaritySearch, ToolUpdateMemory},
		},
		{
			name: "todos",
			cfg:  func(c *Config) { c.IncludeTodoList = true },
			want: []string{ToolAnswerFromDocument, ToolCreateTodo, ToolSimilaritySearch, ToolUpdateTodo},
		},
		{
			name: "artifacts",
			cfg:  func(c *Config) { c.IncludeArtifacts = true },
			want: []string{ToolAnswerFromDocument, ToolCreateResearchReport, ToolReadArtifact, ToolSimilaritySearch, ToolUpdateArtifact},
		},
		{
			name: "web",
			cfg:  func(c *Config) { c.IncludeWebTools = true },
			want: []string{ToolAnswerFromDocument, ToolSimilaritySearch, ToolURLLookup, ToolWebSearch},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{AgentConfig: config.AgentConfig{Model: "test-model", MaxSteps: 1}}
			tt.cfg(&cfg)
			a := newAgent(t, mocks.NewScriptedProvider(), cfg, nil)
			assert.Equal(t, tt.want, a.ToolNames())
		})
	}
}

func TestNew_AllToolsMaterialize(t *testing.T) {
	a := newAgent(t, mocks.NewScriptedProvider(), allOn(), nil, WithWebSearcher(&fakeSearcher{}))

	got, err := a.GetTools(context.Background(), tools.Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 10)
	assert.Equal(t, 0, a.GetState().FailedToolCount)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{}, agent.Deps{
		Provider: mocks.NewScriptedProvider(),
		Context:  newContext(t, agentctx.DefaultThreadOptions("u1", "t1")),
	})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrConfiguration))
}

func TestNew_DefaultsMaxSteps(t *testing.T) {
	cfg := Config{AgentConfig: config.AgentConfig{Model: "test-model"}}
	a := newAgent(t, mocks.NewScriptedProvider(), cfg, nil)
	assert.Equal(t, config.DefaultMaxSteps, a.Flags().MaxSteps)
}

func TestFactories_MissingDependenciesAreCounted(t *testing.T) {
	opts := agentctx.DefaultThreadOptions("u1", "t1")
	opts.UseMemory = false
	opts.UseTodos = false
	opts.UseArtifacts = false
	opts.UseKnowledgeBase = false
	actx := newContext(t, opts)

	a := newAgent(t, mocks.NewScriptedProvider(), allOn(), actx)

	got, err := a.GetTools(context.Background(), tools.Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)

	health := a.HealthCheck(context.Background())
	assert.Equal(t, 10, health.FailedToolCount)
	assert.Contains(t, a.GetState().FailedTools, ToolWebSearch)
}

// =============================================================================
// 系统提示
// =============================================================================

func systemPrompt(t *testing.T, p *mocks.ScriptedProvider) string {
	t.Helper()
	req := p.LastRequest()
	require.NotNil(t, req)
	require.NotEmpty(t, req.Messages)
	require.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	return req.Messages[0].Content
}

func TestInstructions_CurrentMemory(t *testing.T) {
	ctx := context.Background()
	actx := newContext(t, agentctx.DefaultThreadOptions("u1", "t1"))
	p := mocks.NewScriptedProvider().WithFallback(mocks.TextTurn("ok"))
	cfg := allOn()
	cfg.SystemPrompt = "You are helpful."
	a := newAgent(t, p, cfg, actx)

	_, err := a.Run(ctx, types.NewUserMessage("", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "You are helpful.", systemPrompt(t, p))

	mem, err := actx.Memory.AddMemory(ctx, "prefers metric units", nil)
	require.NoError(t, err)

	_, err = a.Run(ctx, types.NewUserMessage("", "again"))
	require.NoError(t, err)
	prompt := systemPrompt(t, p)
	assert.Contains(t, prompt, "You are helpful.\n\n## Current Memory")
	assert.Contains(t, prompt, "- "+mem.ID+": prefers metric units")
}

func TestInstructions_StaticWithoutMemory(t *testing.T) {
	ctx := context.Background()
	actx := newContext(t, agentctx.DefaultThreadOptions("u1", "t1"))
	_, err := actx.Memory.AddMemory(ctx, "ignored", nil)
	require.NoError(t, err)

	p := mocks.NewScriptedProvider(mocks.TextTurn("ok"))
	cfg := Config{AgentConfig: config.AgentConfig{Model: "test-model", MaxSteps: 1}}
	a := newAgent(t, p, cfg, actx)

	_, err = a.Run(ctx, types.NewUserMessage("", "hi"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, systemPrompt(t, p))
	assert.Equal(t, "static", a.GetState().Instructions)
}

// =============================================================================
// 工具行为
// =============================================================================

func TestUpdateMemoryTool(t *testing.T) {
	ctx := context.Background()
	actx := newContext(t, agentctx.DefaultThreadOptions("u1", "t1"))
	a := newAgent(t, mocks.NewScriptedProvider(), allOn(), actx)

	out := invoke(t, a, ToolUpdateMemory, `{"updates":[{"details":"likes go"},{"details":"lives in pune"}]}`)
	assert.Equal(t, true, out["success"])

	memories, err := actx.Memory.Load(ctx)
	require.NoError(t, err)
	require.Len(t, memories, 2)

	input := `{"updates":[{"id":"` + memories[0].ID + `","details":"loves go"}],"invalidate":["` + memories[1].ID + `"]}`
	invoke(t, a, ToolUpdateMemory, input)

	memories, err = actx.Memory.Load(ctx)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "loves go", memories[0].Details)
	assert.NotNil(t, memories[0].UpdatedAt)
}

func TestUpdateMemoryTool_RejectsInvalidInput(t *testing.T) {
	a := newAgent(t, mocks.NewScriptedProvider(), allOn(), nil)
	got, err := a.GetTools(context.Background(), tools.Filter{Required: []string{ToolUpdateMemory}})
	require.NoError(t, err)

	_, err = got[ToolUpdateMemory].Invoke(context.Background(), json.RawMessage(`{"updates":[{"id":"x"}]}`))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrValidation))
}

func TestTodoTools(t *testing.T) {
	ctx := context.Background()
	actx := newContext(t, agentctx.DefaultThreadOptions("u1", "t1"))
	a := newAgent(t, mocks.NewScriptedProvider(), allOn(), actx)

	out := invoke(t, a, ToolCreateTodo, `{"tasks":["collect sources","draft report"]}`)
	assert.Len(t, out["todos"], 2)

	todos, err := actx.Todos.Load(ctx)
	require.NoError(t, err)
	require.Len(t, todos, 2)
	for _, td := range todos {
		assert.Equal(t, state.TodoPending, td.Status)
		assert.Equal(t, state.PriorityMedium, td.Priority)
	}

	input := `{"addTasks":["review"],"updateTasks":[{"id":"` + todos[0].ID + `","status":"completed"}]}`
	out = invoke(t, a, ToolUpdateTodo, input)
	assert.Len(t, out["todos"], 3)

	todos, err = actx.Todos.Load(ctx)
	require.NoError(t, err)
	require.Len(t, todos, 3)
	assert.Equal(t, state.TodoCompleted, todos[0].Status)
	assert.Equal(t, "review", todos[2].Task)
}

func TestUpdateTodoTool_UnknownID(t *testing.T) {
	a := newAgent(t, mocks.NewScriptedProvider(), allOn(), nil)
	got, err := a.GetTools(context.Background(), tools.Filter{Required: []string{ToolUpdateTodo}})
	require.NoError(t, err)

	_, err = got[ToolUpdateTodo].Invoke(context.Background(),
		json.RawMessage(`{"updateTasks":[{"id":"missing","status":"completed"}]}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, state.ErrNotFound))
}

func TestArtifactTools(t *testing.T) {
	ctx := context.Background()
	actx := newContext(t, agentctx.DefaultThreadOptions("u1", "t1"))
	a := newAgent(t, mocks.NewScriptedProvider(), allOn(), actx)

	out := invoke(t, a, ToolCreateResearchReport, `{
		"title": "Solar",
		"sections": [{"slug": "intro", "title": "Intro", "content": "Sun."}]
	}`)
	id, ok := out["artifactId"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)

	out = invoke(t, a, ToolReadArtifact, `{"id":"`+id+`"}`)
	artifact := out["artifact"].(map[string]any)
	assert.Equal(t, "Solar", artifact["title"])
	assert.Equal(t, state.ArtifactTypeResearchReport, artifact["type"])

	invoke(t, a, ToolUpdateArtifact, `{
		"id": "`+id+`",
		"title": "Solar Power",
		"sectionToUpdate": {"slug": "intro", "content": "The sun."}
	}`)
	invoke(t, a, ToolUpdateArtifact, `{
		"id": "`+id+`",
		"sectionToUpdate": {"slug": "costs", "title": "Costs", "content": "Falling.", "references": [{"id": "r1", "title": "IEA"}]}
	}`)

	stored, err := actx.Artifacts.GetArtifact(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Solar Power", stored.Title)

	var report state.ReportContent
	require.NoError(t, json.Unmarshal(stored.Content, &report))
	assert.Equal(t, "Solar Power", report.Title)
	require.Len(t, report.Sections, 2)
	assert.Equal(t, "Intro", report.Sections[0].Title)
	assert.Equal(t, "The sun.", report.Sections[0].Content)
	assert.Equal(t, "costs", report.Sections[1].Slug)
	require.Len(t, report.Sections[1].References, 1)
	assert.Equal(t, "IEA", report.Sections[1].References[0].Title)
}

func TestWebTools(t *testing.T) {
	web := &fakeSearcher{}
	a := newAgent(t, mocks.NewScriptedProvider(), allOn(), nil, WithWebSearcher(web))

	out := invoke(t, a, ToolWebSearch, `{"query":"golang"}`)
	results := out["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "https://go.dev", results[0].(map[string]any)["url"])

	out = invoke(t, a, ToolURLLookup, `{"url":"https://go.dev"}`)
	assert.Equal(t, "page text", out["content"])

	assert.Equal(t, []string{"golang"}, web.queries)
	assert.Equal(t, []string{"https://go.dev"}, web.urls)
}

func TestWebTools_SearchError(t *testing.T) {
	web := &fakeSearcher{err: errors.New("connection refused")}
	a := newAgent(t, mocks.NewScriptedProvider(), allOn(), nil, WithWebSearcher(web))

	got, err := a.GetTools(context.Background(), tools.Filter{Required: []string{ToolWebSearch}})
	require.NoError(t, err)
	_, err = got[ToolWebSearch].Invoke(context.Background(), json.RawMessage(`{"query":"x"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKnowledgeTools(t *testing.T) {
	a := newAgent(t, mocks.NewScriptedProvider(), allOn(), nil)

	out := invoke(t, a, ToolSimilaritySearch, `{"query":"solar"}`)
	results := out["results"].([]any)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].(map[string]any)["content"], "solar")

	out = invoke(t, a, ToolAnswerFromDocument, `{"documentId":"doc-1","query":"cost?"}`)
	assert.Equal(t, "Mock answer for document doc-1: cost?", out["text"])
}

// =============================================================================
// 完整回合
// =============================================================================

func TestRun_ModelUpdatesMemory(t *testing.T) {
	ctx := context.Background()
	actx := newContext(t, agentctx.DefaultThreadOptions("u1", "t1"))
	p := mocks.NewScriptedProvider(
		mocks.ToolTurn(mocks.Call("c1", ToolUpdateMemory, `{"updates":[{"details":"name is Asha"}]}`)),
		mocks.TextTurn("Nice to meet you, Asha."),
	)
	a := newAgent(t, p, allOn(), actx)

	reply, err := a.Run(ctx, types.NewUserMessage("", "I am Asha"))
	require.NoError(t, err)
	assert.Equal(t, "Nice to meet you, Asha.", reply.Text())

	snap, err := a.LoadState(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Memory, 1)
	assert.Equal(t, "name is Asha", snap.Memory[0].Details)
	assert.Empty(t, snap.Todos)
	assert.Nil(t, snap.Messages)

	msgs, err := a.LoadMessages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, types.RoleUser, msgs[0].Role)
	assert.Equal(t, types.RoleAssistant, msgs[1].Role)
}

func TestLoadMessages_Disabled(t *testing.T) {
	opts := agentctx.DefaultThreadOptions("u1", "t1")
	opts.UseMessages = false
	a := newAgent(t, mocks.NewScriptedProvider(), allOn(), newContext(t, opts))

	msgs, err := a.LoadMessages(context.Background())
	require.NoError(t, err)
	assert.Nil(t, msgs)
}
