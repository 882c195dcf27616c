package agent

import (
	"fmt"

	"github.com/vivekverma239/superfast-ai/types"
)

// DefaultRetries cfg.Retries 未设置时的重试次数
const DefaultRetries = 3

func configError(msg string) error {
	return types.NewConfigurationError(msg)
}

func pluginError(name, msg string, cause error) *types.Error {
	err := types.NewError(types.ErrPlugin, fmt.Sprintf("plugin %s: %s", name, msg)).
		WithContext("plugin", name)
	if cause != nil {
		err = err.WithCause(cause)
	}
	return err
}
