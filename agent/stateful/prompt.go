package stateful

import (
	"context"
	"strings"

	"github.com/vivekverma239/superfast-ai/agent"
	"github.com/vivekverma239/superfast-ai/agent/agentctx"
)

// DefaultSystemPrompt is used when the config carries no system prompt.
const DefaultSystemPrompt = `You are a research assistant that gathers, analyzes and synthesizes information.

Use updateMemory for durable user preferences and key findings, and invalidate entries that are outdated.
Break multi-step work into todos with createTodo and track progress with updateTodo.
Use webSearch and urlLookup for information you do not have, and cite your sources.
Compile substantial findings into a report with createResearchReport; review with readArtifact before changing it with updateArtifact.
Search the user's documents with similaritySearchKnowledgeBase and answerFromKnowledgeBaseDocument.
Answer simple questions directly without creating artifacts or todos.`

const memoryHeading = "## Current Memory"

// memoryInstructions appends the user's current memory to base on every turn.
func memoryInstructions(base string) agent.Instructions {
	return agent.DerivedInstructions(func(ctx context.Context, c *agentctx.Context) (string, error) {
		if c == nil || c.Memory == nil {
			return base, nil
		}
		memories, err := c.Memory.Load(ctx)
		if err != nil {
			return "", err
		}
		if len(memories) == 0 {
			return base, nil
		}

		var b strings.Builder
		b.WriteString(base)
		b.WriteString("\n\n")
		b.WriteString(memoryHeading)
		for _, m := range memories {
			b.WriteString("\n- ")
			b.WriteString(m.ID)
			b.WriteString(": ")
			b.WriteString(m.Details)
		}
		return b.String(), nil
	})
}
