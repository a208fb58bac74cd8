// Package buildcfg resolves the static-site build configuration: which output
// adapter the build uses and how internal links are resolved.
package buildcfg

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// EnvNodeEnv carries the build mode.
	EnvNodeEnv = "NODE_ENV"
	// Production is the only NODE_ENV value that selects the static adapter.
	Production = "production"
	// Preprocessor is the fixed component preprocessing step.
	Preprocessor = "vite"
)

// Adapter is a build output strategy.
type Adapter string

const (
	// AdapterStatic prerenders every page into a plain file tree.
	AdapterStatic Adapter = "static"
	// AdapterNode produces a server bundle that needs a running host process.
	AdapterNode Adapter = "node"
)

// Package names the npm package that implements the adapter.
func (a Adapter) Package() string {
	switch a {
	case AdapterStatic:
		return "@sveltejs/adapter-static"
	case AdapterNode:
		return "@sveltejs/adapter-node"
	default:
		return ""
	}
}

// ServerRuntime reports whether the output needs a live server process.
func (a Adapter) ServerRuntime() bool {
	return a == AdapterNode
}

// Paths controls link resolution.
type Paths struct {
	Relative bool `yaml:"relative" json:"relative"`
}

// Kit is the framework section of the build configuration.
type Kit struct {
	Adapter        Adapter `yaml:"adapter" json:"adapter"`
	AdapterPackage string  `yaml:"adapter_package" json:"adapter_package"`
	Paths          Paths   `yaml:"paths" json:"paths"`
}

// Config is the resolved build configuration. It is built once and never mutated.
type Config struct {
	Preprocess string `yaml:"preprocess" json:"preprocess"`
	Kit        Kit    `yaml:"kit" json:"kit"`
}

// Resolve picks the adapter for nodeEnv. Only an exact "production" selects
// the static adapter; anything else, including "", selects node.
// Links are always page relative.
func Resolve(nodeEnv string) Config {
	adapter := AdapterNode
	if nodeEnv == Production {
		adapter = AdapterStatic
	}
	return Config{
		Preprocess: Preprocessor,
		Kit: Kit{
			Adapter:        adapter,
			AdapterPackage: adapter.Package(),
			Paths:          Paths{Relative: true},
		},
	}
}

// FromEnv resolves the configuration from NODE_ENV.
func FromEnv() Config {
	return Resolve(os.Getenv(EnvNodeEnv))
}

// Output formats understood by Encode.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Encode writes c to w as yaml or json.
func (c Config) Encode(w io.Writer, format string) error {
	switch format {
	case FormatYAML, "yml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (valid: %s, %s)", format, FormatYAML, FormatJSON)
	}
}
