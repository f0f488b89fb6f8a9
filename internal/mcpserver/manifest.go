package mcpserver

import (
	"encoding/json"
)

const (
	manifestSchema = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"
	manifestName   = "io.github.panbanda/pyaudit"
	imageName      = "ghcr.io/panbanda/pyaudit"
)

// Manifest is the registry description (server.json) of the MCP server.
type Manifest struct {
	Schema      string      `json:"$schema"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Repository  *Repository `json:"repository,omitempty"`
	Packages    []Package   `json:"packages,omitempty"`
}

// Repository locates the server's source.
type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Package describes one way to run the server.
type Package struct {
	RegistryType         string        `json:"registryType"`
	Identifier           string        `json:"identifier"`
	PackageArguments     []Argument    `json:"packageArguments,omitempty"`
	EnvironmentVariables []Environment `json:"environmentVariables,omitempty"`
	Transport            Transport     `json:"transport"`
}

// Argument is a command-line argument passed to the package.
type Argument struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// Environment is an environment variable read by the server.
type Environment struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsRequired  bool   `json:"isRequired"`
}

// Transport names the MCP transport.
type Transport struct {
	Type string `json:"type"`
}

// GenerateManifest returns the indented server.json for version. An
// empty version is published as 0.0.0.
func GenerateManifest(version string) ([]byte, error) {
	if version == "" {
		version = "0.0.0"
	}

	return json.MarshalIndent(Manifest{
		Schema:      manifestSchema,
		Name:        manifestName,
		Description: "Python code audit: function metrics, code smells, and zero-divisor and tautology checks",
		Version:     version,
		Repository:  &Repository{URL: "https://github.com/panbanda/pyaudit", Source: "github"},
		Packages: []Package{{
			RegistryType:     "oci",
			Identifier:       imageName + ":" + version,
			PackageArguments: []Argument{{Type: "positional", Value: "mcp"}},
			EnvironmentVariables: []Environment{{
				Name:        "PYAUDIT_CONFIG",
				Description: "Path to a pyaudit.toml, .yaml or .json with smell thresholds and solver settings",
			}},
			Transport: Transport{Type: "stdio"},
		}},
	}, "", "  ")
}
