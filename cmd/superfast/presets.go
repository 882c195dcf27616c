package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/vivekverma239/superfast-ai/config"
)

func (a *app) presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the built-in agent presets as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := config.NewPresetRegistry()
			out := make(map[string]config.StatefulAgentConfig)
			for _, name := range reg.List() {
				cfg, _ := reg.Get(name)
				out[name] = cfg
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
