package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vivekverma239/superfast-ai/agent/provider"
	"github.com/vivekverma239/superfast-ai/agent/state"
	"github.com/vivekverma239/superfast-ai/internal/container"
	"github.com/vivekverma239/superfast-ai/types"
)

type threadState struct {
	Memory    []state.MemoryState   `json:"memory"`
	Todos     []state.TodoState     `json:"todos"`
	Artifacts []state.ArtifactState `json:"artifacts"`
	Messages  []types.Message       `json:"messages,omitempty"`
}

func (a *app) stateCmd() *cobra.Command {
	var (
		user     string
		thread   string
		messages bool
	)
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the stored state of a thread as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user == "" || thread == "" {
				return fmt.Errorf("--user and --thread are required")
			}
			ctx := cmd.Context()
			return a.withContainer(ctx, func(c *container.Container) error {
				scope := provider.Scope{UserID: user, ThreadID: thread}
				pm := c.Providers()

				var out threadState
				var err error
				if out.Memory, err = load[[]state.MemoryState](cmd, pm, provider.NameMemory, scope); err != nil {
					return err
				}
				if out.Todos, err = load[[]state.TodoState](cmd, pm, provider.NameTodo, scope); err != nil {
					return err
				}
				if out.Artifacts, err = load[[]state.ArtifactState](cmd, pm, provider.NameArtifact, scope); err != nil {
					return err
				}
				if messages {
					if out.Messages, err = load[[]types.Message](cmd, pm, provider.NameMessage, scope); err != nil {
						return err
					}
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "User ID")
	cmd.Flags().StringVarP(&thread, "thread", "t", "", "Thread ID")
	cmd.Flags().BoolVar(&messages, "messages", false, "Include the message history")
	return cmd
}

func load[T any](cmd *cobra.Command, pm *provider.ProviderManager, name string, scope provider.Scope) (T, error) {
	p, err := provider.Lookup[T](pm, name)
	if err != nil {
		var zero T
		return zero, err
	}
	return p.Load(cmd.Context(), scope)
}
