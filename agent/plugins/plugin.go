package plugins

import (
	"github.com/vivekverma239/superfast-ai/agent"
)

// Metadata holds descriptive information about a plugin.
type Metadata struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Description  string            `json:"description,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Dependencies []string          `json:"dependencies,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Constructor creates a fresh plugin instance. Plugins are per agent, so the
// catalog never shares instances.
type Constructor func() (agent.Plugin, error)

// Entry bundles a constructor with its metadata.
type Entry struct {
	Metadata Metadata    `json:"metadata"`
	New      Constructor `json:"-"`
}
