package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vivekverma239/superfast-ai/internal/container"
	"github.com/vivekverma239/superfast-ai/llm/tools"
	"github.com/vivekverma239/superfast-ai/types"
)

type chatFlags struct {
	preset  string
	user    string
	thread  string
	folder  string
	message string
	stream  bool
	plugins []string
}

func (a *app) chatCmd() *cobra.Command {
	var f chatFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run one conversation turn and print the reply",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.message == "" {
				return fmt.Errorf("--message is required")
			}
			if f.thread == "" {
				f.thread = uuid.NewString()
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.withContainer(ctx, func(c *container.Container) error {
				return runChat(ctx, c, f, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}
	cmd.Flags().StringVarP(&f.preset, "preset", "p", "", "Agent preset (default: agent section of the config)")
	cmd.Flags().StringVarP(&f.user, "user", "u", "cli", "User ID")
	cmd.Flags().StringVarP(&f.thread, "thread", "t", "", "Thread ID (default: new thread)")
	cmd.Flags().StringVar(&f.folder, "folder", "", "Knowledge base folder ID")
	cmd.Flags().StringVarP(&f.message, "message", "m", "", "Message to send")
	cmd.Flags().BoolVar(&f.stream, "stream", false, "Stream the reply as it is generated")
	cmd.Flags().StringSliceVar(&f.plugins, "plugin", nil, "Plugins to install (repeatable)")
	return cmd
}

func runChat(ctx context.Context, c *container.Container, f chatFlags, out, errOut io.Writer) error {
	a, err := c.NewAgent(ctx, container.AgentRequest{
		Preset:   f.preset,
		UserID:   f.user,
		ThreadID: f.thread,
		FolderID: f.folder,
		Plugins:  f.plugins,
	})
	if err != nil {
		return err
	}
	defer a.Cleanup(context.Background())

	fmt.Fprintf(errOut, "thread: %s\n", f.thread)
	msg := types.NewUserMessage("", f.message)

	if !f.stream {
		reply, err := a.Run(ctx, msg)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply.Text())
		return nil
	}

	sr, err := a.Stream(ctx, msg)
	if err != nil {
		return err
	}
	for ev := range sr.Events() {
		switch ev.Type {
		case tools.EventTextDelta:
			fmt.Fprint(out, ev.Text)
		case tools.EventToolCall:
			if ev.ToolCall != nil {
				fmt.Fprintf(errOut, "  ↳ %s\n", ev.ToolCall.Name)
			}
		}
	}
	fmt.Fprintln(out)
	_, err = sr.Wait()
	return err
}
