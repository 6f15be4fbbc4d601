// Package sampleprovider is a small stdio MCP server used to try toolhub
// end to end without installing anything else.
package sampleprovider

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const Version = "0.1.0"

var weather = map[string]string{
	"san-francisco": "San Francisco: foggy mornings around 16°C with afternoon sun.",
	"new-york":      "New York: clear skies near 24°C and a light breeze.",
	"london":        "London: scattered showers, 18°C.",
	"tokyo":         "Tokyo: sunny, 27°C, humid after sunset.",
}

func cities() []string {
	out := make([]string, 0, len(weather))
	for c := range weather {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// NewServer builds the sample server with its three tools.
func NewServer(name string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: Version,
	}, nil)

	addWeather(server)
	addCities(server)
	addEcho(server)

	return server
}

// Run serves over stdin/stdout until the client disconnects or ctx ends.
func Run(ctx context.Context, name string) error {
	return NewServer(name).Run(ctx, &mcp.StdioTransport{})
}

func text(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: s}}}
}

func addWeather(server *mcp.Server) {
	type args struct {
		City string `json:"city" jsonschema:"city to look up, e.g. london"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_weather",
		Description: "Return a short weather report for a known city",
	}, func(_ context.Context, _ *mcp.CallToolRequest, a args) (*mcp.CallToolResult, any, error) {
		city := strings.ToLower(strings.TrimSpace(a.City))
		if city == "" {
			return nil, nil, fmt.Errorf("city is required (one of %s)", strings.Join(cities(), ", "))
		}
		report, ok := weather[city]
		if !ok {
			return nil, nil, fmt.Errorf("unknown city %q (one of %s)", city, strings.Join(cities(), ", "))
		}
		return text(report), nil, nil
	})
}

func addCities(server *mcp.Server) {
	type args struct{}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_cities",
		Description: "List the cities get_weather knows about",
	}, func(context.Context, *mcp.CallToolRequest, args) (*mcp.CallToolResult, any, error) {
		return text(strings.Join(cities(), ", ")), nil, nil
	})
}

func addEcho(server *mcp.Server) {
	type args struct {
		Message string `json:"message" jsonschema:"text to send back"`
		Upper   bool   `json:"upper,omitempty" jsonschema:"uppercase the reply"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "echo",
		Description: "Echo a message back",
	}, func(_ context.Context, _ *mcp.CallToolRequest, a args) (*mcp.CallToolResult, any, error) {
		msg := a.Message
		if a.Upper {
			msg = strings.ToUpper(msg)
		}
		return text(msg), nil, nil
	})
}
