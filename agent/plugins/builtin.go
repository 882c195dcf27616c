package plugins

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/vivekverma239/superfast-ai/agent"
	"github.com/vivekverma239/superfast-ai/llm/tools"
)

// Built-in plugin names.
const (
	DateTimePlugin = "datetime"
)

type dateTimeInput struct {
	Timezone string `json:"timezone,omitempty"`
}

type dateTimeOutput struct {
	Timezone string `json:"timezone"`
	ISO8601  string `json:"iso8601"`
	Unix     int64  `json:"unix"`
	Weekday  string `json:"weekday"`
}

// NewDateTimeToolset returns the toolset exposing currentDateTime. now
// defaults to time.Now.
func NewDateTimeToolset(now func() time.Time) *Toolset {
	if now == nil {
		now = time.Now
	}
	return &Toolset{
		Meta: Metadata{
			Name:        DateTimePlugin,
			Version:     "1.0.0",
			Description: "Current date and time lookup",
			Tags:        []string{"utility", "time"},
		},
		Tools: []*tools.Tool{{
			Name:        "currentDateTime",
			Description: "Get the current date and time, optionally in an IANA timezone such as Asia/Kolkata.",
			Category:    tools.CategoryUtility,
			InputSchema: json.RawMessage(`{"type":"object","properties":{"timezone":{"type":"string"}},"additionalProperties":false}`),
			Execute: func(_ context.Context, raw json.RawMessage) (any, error) {
				in, err := tools.ParseInput[dateTimeInput](raw)
				if err != nil {
					return nil, err
				}
				loc := time.UTC
				if in.Timezone != "" {
					if loc, err = time.LoadLocation(in.Timezone); err != nil {
						return nil, err
					}
				}
				t := now().In(loc)
				return dateTimeOutput{
					Timezone: loc.String(),
					ISO8601:  t.Format(time.RFC3339),
					Unix:     t.Unix(),
					Weekday:  t.Weekday().String(),
				}, nil
			},
		}},
	}
}

// DefaultCatalog returns a catalog holding the built-in plugins.
func DefaultCatalog(logger *zap.Logger) *Catalog {
	c := NewCatalog(logger)
	dt := NewDateTimeToolset(nil)
	_ = c.Register(dt.Meta, func() (agent.Plugin, error) { return NewDateTimeToolset(nil), nil })
	return c
}
