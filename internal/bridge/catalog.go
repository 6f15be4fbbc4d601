package bridge

import "encoding/json"

// CatalogEntry describes one tool a bridge is known to serve. Bridges have
// no discovery endpoint, so the catalog is agreed out of band.
type CatalogEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// DockerCatalog is the tool set of the Docker MCP toolkit gateway.
func DockerCatalog() []CatalogEntry {
	return []CatalogEntry{
		{
			Name:        "docker",
			Description: "Execute Docker CLI commands",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"args": {"type": "array", "items": {"type": "string"}, "description": "Arguments to pass to the Docker command"}
				},
				"required": ["args"]
			}`),
		},
		{
			Name:        "kubectl_get",
			Description: "Get or list Kubernetes resources",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"resourceType": {"type": "string", "description": "Type of resource to get (e.g., pods, deployments, services)"},
					"name": {"type": "string", "description": "Name of the resource (optional)"},
					"namespace": {"type": "string", "default": "default", "description": "Namespace of the resource"}
				},
				"required": ["resourceType", "name", "namespace"]
			}`),
		},
		{
			Name:        "kubectl_describe",
			Description: "Describe Kubernetes resources",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"resourceType": {"type": "string", "description": "Type of resource to describe"},
					"name": {"type": "string", "description": "Name of the resource to describe"},
					"namespace": {"type": "string", "default": "default"}
				},
				"required": ["resourceType", "name"]
			}`),
		},
		{
			Name:        "get_file_contents",
			Description: "Get contents of a file from GitHub repository",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"owner": {"type": "string", "description": "Repository owner"},
					"repo": {"type": "string", "description": "Repository name"},
					"path": {"type": "string", "description": "Path to file/directory"},
					"branch": {"type": "string", "description": "Branch to get contents from"}
				},
				"required": ["owner", "repo", "path"]
			}`),
		},
		{
			Name:        "create_or_update_file",
			Description: "Create or update a file in GitHub repository",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"owner": {"type": "string", "description": "Repository owner"},
					"repo": {"type": "string", "description": "Repository name"},
					"path": {"type": "string", "description": "Path where to create/update the file"},
					"content": {"type": "string", "description": "Content of the file"},
					"message": {"type": "string", "description": "Commit message"},
					"branch": {"type": "string", "description": "Branch to create/update the file in"}
				},
				"required": ["owner", "repo", "path", "content", "message", "branch"]
			}`),
		},
		{
			Name:        "list_pull_requests",
			Description: "List pull requests in a GitHub repository",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"owner": {"type": "string", "description": "Repository owner"},
					"repo": {"type": "string", "description": "Repository name"},
					"state": {"type": "string", "enum": ["open", "closed", "all"], "description": "Filter by state"}
				},
				"required": ["owner", "repo"]
			}`),
		},
	}
}
