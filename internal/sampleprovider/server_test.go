package sampleprovider

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	_, err := NewServer("sample-test").Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callText(t *testing.T, s *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text, res.IsError
}

func TestListTools(t *testing.T) {
	s := connect(t)
	res, err := s.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"get_weather", "list_cities", "echo"}, names)
}

func TestTools(t *testing.T) {
	s := connect(t)

	out, isErr := callText(t, s, "get_weather", map[string]any{"city": "London"})
	assert.False(t, isErr)
	assert.Contains(t, out, "London")

	out, isErr = callText(t, s, "get_weather", map[string]any{"city": "atlantis"})
	assert.True(t, isErr)
	assert.Contains(t, out, "unknown city")

	out, _ = callText(t, s, "list_cities", map[string]any{})
	assert.Equal(t, "london, new-york, san-francisco, tokyo", out)

	out, _ = callText(t, s, "echo", map[string]any{"message": "hi", "upper": true})
	assert.Equal(t, "HI", out)
}
