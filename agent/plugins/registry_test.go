package plugins

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vivekverma239/superfast-ai/agent"
)

func toolsetCtor(meta Metadata) Constructor {
	return func() (agent.Plugin, error) { return &Toolset{Meta: meta}, nil }
}

func TestCatalog_RegisterAndGet(t *testing.T) {
	c := NewCatalog(zaptest.NewLogger(t))
	meta := Metadata{Name: "alpha", Version: "1.0.0"}

	require.NoError(t, c.Register(meta, toolsetCtor(meta)))

	e, ok := c.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", e.Metadata.Version)

	err := c.Register(meta, toolsetCtor(meta))
	assert.True(t, errors.Is(err, ErrPluginAlreadyRegistered))
}

func TestCatalog_RegisterValidation(t *testing.T) {
	c := NewCatalog(nil)
	assert.Error(t, c.Register(Metadata{}, toolsetCtor(Metadata{})))
	assert.Error(t, c.Register(Metadata{Name: "x"}, nil))
}

func TestCatalog_Unregister(t *testing.T) {
	c := NewCatalog(nil)
	meta := Metadata{Name: "alpha"}
	require.NoError(t, c.Register(meta, toolsetCtor(meta)))

	require.NoError(t, c.Unregister("alpha"))
	_, ok := c.Get("alpha")
	assert.False(t, ok)

	assert.True(t, errors.Is(c.Unregister("alpha"), ErrPluginNotFound))
}

func TestCatalog_ListSorted(t *testing.T) {
	c := NewCatalog(nil)
	for _, name := range []string{"gamma", "alpha", "beta"} {
		meta := Metadata{Name: name}
		require.NoError(t, c.Register(meta, toolsetCtor(meta)))
	}

	list := c.List()
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "beta", list[1].Name)
	assert.Equal(t, "gamma", list[2].Name)
}

func TestCatalog_Search(t *testing.T) {
	c := NewCatalog(nil)
	entries := []Metadata{
		{Name: "web", Tags: []string{"network", "search"}},
		{Name: "clock", Tags: []string{"utility"}},
		{Name: "files", Tags: []string{"utility", "io"}},
	}
	for _, meta := range entries {
		require.NoError(t, c.Register(meta, toolsetCtor(meta)))
	}

	tests := []struct {
		name string
		tags []string
		want []string
	}{
		{"single tag", []string{"search"}, []string{"web"}},
		{"shared tag", []string{"utility"}, []string{"clock", "files"}},
		{"any of", []string{"io", "network"}, []string{"files", "web"}},
		{"no match", []string{"gpu"}, nil},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, m := range c.Search(tt.tags) {
				got = append(got, m.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalog_OrderResolvesDependencies(t *testing.T) {
	c := NewCatalog(nil)
	for _, meta := range []Metadata{
		{Name: "base"},
		{Name: "mid", Dependencies: []string{"base"}},
		{Name: "top", Dependencies: []string{"mid", "base"}},
	} {
		require.NoError(t, c.Register(meta, toolsetCtor(meta)))
	}

	order, err := c.Order("top")
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "mid", "top"}, order)

	order, err = c.Order("base", "top")
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "mid", "top"}, order)
}

func TestCatalog_OrderErrors(t *testing.T) {
	c := NewCatalog(nil)
	for _, meta := range []Metadata{
		{Name: "a", Dependencies: []string{"b"}},
		{Name: "b", Dependencies: []string{"a"}},
		{Name: "orphan", Dependencies: []string{"ghost"}},
	} {
		require.NoError(t, c.Register(meta, toolsetCtor(meta)))
	}

	_, err := c.Order("a")
	assert.True(t, errors.Is(err, ErrDependencyCycle))

	_, err = c.Order("orphan")
	assert.True(t, errors.Is(err, ErrPluginNotFound))
}

func TestCatalog_BuildFreshInstances(t *testing.T) {
	c := NewCatalog(nil)
	meta := Metadata{Name: "alpha"}
	require.NoError(t, c.Register(meta, toolsetCtor(meta)))

	first, err := c.Build("alpha")
	require.NoError(t, err)
	second, err := c.Build("alpha")
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotSame(t, first[0], second[0])
}

func TestCatalog_BuildConstructorError(t *testing.T) {
	c := NewCatalog(nil)
	require.NoError(t, c.Register(Metadata{Name: "broken"}, func() (agent.Plugin, error) {
		return nil, errors.New("no credentials")
	}))

	_, err := c.Build("broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}
