package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

func tool(name, provider string, kind schema.ProviderKind) schema.Tool {
	return schema.NewTool(name, name+" tool", nil, kind, provider, func(context.Context, map[string]any) (any, error) {
		return provider + ":" + name, nil
	})
}

func TestRebuildOrderAndCollisions(t *testing.T) {
	p1 := []schema.Tool{tool("t1", "P1", schema.KindStdio), tool("shared", "P1", schema.KindStdio)}
	p2 := []schema.Tool{tool("t2", "P2", schema.KindHTTP), tool("shared", "P2", schema.KindHTTP)}
	dyn := []schema.Tool{tool("t1", "", schema.KindDynamic), tool("local", "", schema.KindDynamic)}

	reg := Rebuild([][]schema.Tool{p1, p2}, dyn)

	assert.Equal(t, []string{"t1", "shared", "t2", "local"}, reg.Names())
	assert.Equal(t, 4, reg.Len())

	shared, ok := reg.Get("shared")
	require.True(t, ok)
	assert.Equal(t, "P2", shared.Provider())

	t1, ok := reg.Get("t1")
	require.True(t, ok)
	assert.Equal(t, schema.KindDynamic, t1.Kind())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRebuildIsPureFunctionOfInputs(t *testing.T) {
	p1 := []schema.Tool{tool("a", "P1", schema.KindStdio), tool("b", "P1", schema.KindStdio)}
	first := Rebuild([][]schema.Tool{p1}, nil)
	second := Rebuild([][]schema.Tool{p1}, nil)

	assert.Equal(t, first.Names(), second.Names())
	assert.True(t, Diff(first, second).Empty())
}

func TestDiff(t *testing.T) {
	a := tool("a", "P1", schema.KindStdio)
	b := tool("b", "P1", schema.KindStdio)
	c := tool("c", "P2", schema.KindHTTP)
	bAgain := tool("b", "", schema.KindDynamic)

	old := Rebuild([][]schema.Tool{{a, b}}, nil)
	next := Rebuild([][]schema.Tool{{a}, {c}}, []schema.Tool{bAgain})

	d := Diff(old, next)
	assert.Empty(t, d.Removed)
	require.Len(t, d.Added, 1)
	assert.Equal(t, "c", d.Added[0].Name())
	require.Len(t, d.Replaced, 1)
	assert.Equal(t, schema.KindDynamic, d.Replaced[0].Kind())

	d = Diff(next, EmptyRegistry())
	assert.Len(t, d.Removed, 3)

	d = Diff(nil, old)
	assert.Len(t, d.Added, 2)
}

func TestRegistrySummariesAndDefinitions(t *testing.T) {
	p, err := schema.ParseParameters([]byte(`{"type":"object","properties":{"q":{"type":"string"}},"required":["q"]}`))
	require.NoError(t, err)
	search := schema.NewTool("search", "find things", p, schema.KindStdio, "P1", nil)
	reg := NewRegistryBuilder().WithTool(search).Build()

	sums := reg.Summaries()
	require.Len(t, sums, 1)
	assert.Equal(t, "search", sums[0].Name)
	assert.Equal(t, "P1", sums[0].Provider)

	defs := reg.AllTools().Definitions()
	require.Len(t, defs, 1)
	fn := defs[0]["function"].(map[string]any)
	assert.Equal(t, "search", fn["name"])
	params := fn["parameters"].(map[string]any)
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, []any{"q"}, params["required"])
}

func TestToolList(t *testing.T) {
	list := NewToolList(tool("a", "P", schema.KindStdio), tool("b", "P", schema.KindStdio))
	list.Add(tool("a", "Q", schema.KindHTTP))
	list.Remove("b")
	list.Remove("missing")

	assert.Equal(t, 1, list.Len())
	a, ok := list.Get("a")
	require.True(t, ok)
	assert.Equal(t, "Q", a.Provider())
}

func TestToolCreator(t *testing.T) {
	var created []string
	creator := NewToolCreator(func(name, _ string, params *schema.Parameters, _ string) (schema.Tool, error) {
		created = append(created, name)
		assert.Equal(t, []string{"x"}, params.Names())
		return schema.Tool{}, nil
	})

	assert.Equal(t, ToolCreatorName, creator.Name())
	assert.Equal(t, schema.KindDynamic, creator.Kind())
	assert.Equal(t, []string{"name", "description", "code", "parameters"}, creator.Parameters().Names())

	got, err := creator.Invoke(context.Background(), map[string]any{
		"name":        "double",
		"description": "doubles",
		"code":        "return x * 2",
		"parameters":  map[string]any{"type": "object", "properties": map[string]any{"x": map[string]any{"type": "number"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Tool created", got)
	assert.Equal(t, []string{"double"}, created)

	got, err = creator.Invoke(context.Background(), map[string]any{"name": "nocode"})
	require.NoError(t, err)
	assert.True(t, schema.IsFailure(got))
}
