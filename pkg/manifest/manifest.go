// Package manifest loads the YAML file describing the ingress address,
// cache settings, and the worker fleet. It validates individual field
// formats; cross-record invariants (unique ids, route ambiguity) are
// left to the router and supervisor to enforce.
package manifest

import (
	"fmt"
	"os"
	"regexp"

	"github.com/cuemby/localproxy/pkg/types"
	"gopkg.in/yaml.v3"
)

var endpointNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Manifest is the parsed, validated on-disk configuration.
type Manifest struct {
	IngressAddr string
	Cache       CacheConfig
	Workers     []*types.WorkerRecord
}

// CacheConfig controls the in-memory response cache. A zero Capacity
// disables caching entirely.
type CacheConfig struct {
	Capacity int
}

type document struct {
	IngressAddr string          `yaml:"ingress_addr"`
	Cache       cacheDocument   `yaml:"cache"`
	Workers     []workerDocument `yaml:"workers"`
}

type cacheDocument struct {
	Capacity int `yaml:"capacity"`
}

type workerDocument struct {
	ID           string   `yaml:"id"`
	Executable   string   `yaml:"executable"`
	Args         []string `yaml:"args"`
	WorkingDir   string   `yaml:"working_dir"`
	RoutePattern string   `yaml:"route_pattern"`
	EndpointName string   `yaml:"endpoint_name"`
	Mode         string   `yaml:"mode"`
}

// Load reads and validates a manifest from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates and converts raw YAML bytes into a Manifest.
func Parse(data []byte) (*Manifest, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("manifest: parse YAML: %w", err)
	}

	if doc.IngressAddr == "" {
		doc.IngressAddr = "127.0.0.1:3000"
	}

	if len(doc.Workers) == 0 {
		return nil, fmt.Errorf("manifest: at least one worker is required")
	}

	workers := make([]*types.WorkerRecord, 0, len(doc.Workers))
	for i, w := range doc.Workers {
		rec, err := w.toRecord()
		if err != nil {
			return nil, fmt.Errorf("manifest: workers[%d]: %w", i, err)
		}
		workers = append(workers, rec)
	}

	return &Manifest{
		IngressAddr: doc.IngressAddr,
		Cache:       CacheConfig{Capacity: doc.Cache.Capacity},
		Workers:     workers,
	}, nil
}

func (w workerDocument) toRecord() (*types.WorkerRecord, error) {
	if w.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if w.Executable == "" {
		return nil, fmt.Errorf("executable is required")
	}
	if w.RoutePattern == "" {
		return nil, fmt.Errorf("route_pattern is required")
	}
	if w.EndpointName == "" {
		return nil, fmt.Errorf("endpoint_name is required")
	}
	if !endpointNamePattern.MatchString(w.EndpointName) {
		return nil, fmt.Errorf("endpoint_name %q must match [A-Za-z0-9_]+", w.EndpointName)
	}

	mode := types.Mode(w.Mode)
	switch mode {
	case types.ModeIPC, types.ModeHTTP:
	case "":
		mode = types.ModeIPC
	default:
		return nil, fmt.Errorf("mode must be %q or %q, got %q", types.ModeIPC, types.ModeHTTP, w.Mode)
	}

	return &types.WorkerRecord{
		ID:           w.ID,
		Executable:   w.Executable,
		Args:         w.Args,
		WorkingDir:   w.WorkingDir,
		RoutePattern: w.RoutePattern,
		EndpointName: w.EndpointName,
		Mode:         mode,
	}, nil
}
