package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vivekverma239/superfast-ai/agent"
	"github.com/vivekverma239/superfast-ai/internal/container"
	"github.com/vivekverma239/superfast-ai/llm/tools"
)

type healthReport struct {
	Status   string                  `json:"status"`
	Agent    agent.HealthStatus      `json:"agent"`
	Services container.ServiceHealth `json:"services"`
}

func (a *app) healthCmd() *cobra.Command {
	var preset string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Print the agent and service health as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return a.withContainer(ctx, func(c *container.Container) error {
				ag, err := c.NewAgent(ctx, container.AgentRequest{Preset: preset, UserID: "health", ThreadID: "health"})
				if err != nil {
					return err
				}
				defer ag.Cleanup(ctx)

				// 物化工厂，使失败的工具计入健康状态
				if _, err := ag.GetTools(ctx, tools.Filter{}); err != nil {
					return err
				}

				report := healthReport{
					Agent:    ag.HealthCheck(ctx),
					Services: c.CheckServices(ctx),
				}
				report.Status = agent.StatusHealthy
				if report.Agent.Status != agent.StatusHealthy || !report.Services.Healthy() {
					report.Status = agent.StatusUnhealthy
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
				if report.Status != agent.StatusHealthy {
					return fmt.Errorf("unhealthy")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "Agent preset to check")
	return cmd
}
