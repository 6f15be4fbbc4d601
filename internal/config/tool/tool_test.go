package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/crystaldolphin/toolhub/internal/schema"
)

func TestNodeJSONKeepsOrder(t *testing.T) {
	var n yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(`
type: object
properties:
  zeta: {type: string, default: "a b"}
  alpha: {type: integer, minimum: 1}
  mid: {type: boolean, default: true}
  list: {type: array, items: {type: "null"}}
required: [zeta]
`), &n))

	raw, err := NodeJSON(&n)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type":"object",
		"properties":{
			"zeta":{"type":"string","default":"a b"},
			"alpha":{"type":"integer","minimum":1},
			"mid":{"type":"boolean","default":true},
			"list":{"type":"array","items":{"type":"null"}}
		},
		"required":["zeta"]
	}`, string(raw))

	p, err := schema.ParseParameters(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid", "list"}, p.Names())
}

func TestNodeJSONZero(t *testing.T) {
	raw, err := NodeJSON(&yaml.Node{})
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestProviderCatalog(t *testing.T) {
	var p ProviderConfig
	require.NoError(t, yaml.Unmarshal([]byte(`
name: bridge
base_url: http://localhost:3001
catalog:
  - name: echo
    description: echoes
    input_schema:
      type: object
      properties:
        text: {type: string}
`), &p))

	cfg, err := p.Provider()
	require.NoError(t, err)
	require.Len(t, cfg.Catalog, 1)
	assert.Equal(t, "echo", cfg.Catalog[0].Name)
	assert.JSONEq(t, `{"type":"object","properties":{"text":{"type":"string"}}}`, string(cfg.Catalog[0].InputSchema))
}

func TestProviderInvalidTimeout(t *testing.T) {
	_, err := ProviderConfig{Name: "x", Command: "node", Timeout: "later"}.Provider()
	assert.ErrorIs(t, err, schema.ErrInvalidConfig)
}
