// Copyright 2026 The RangeLua Authors
// SPDX-License-Identifier: MIT

// Package rconfig loads the optional rangelua.jsonc configuration file
// used by cmd/rangelua, following the same layering as the teacher's
// cmd/zb/config.go: defaults, then an on-disk config file (parsed with
// hujson so comments are allowed), then environment variables, in
// increasing order of precedence.
package rconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/tailscale/hujson"
)

// Config holds the tunables §6 and §5 of the language spec this package
// supports leave to the embedder: value-stack and call-frame capacities,
// the GC's allocation-pressure trigger, and the module search path.
type Config struct {
	// StackCapacity is the value stack's fixed capacity (§4.4's "default
	// 1024, hard maximum enforced").
	StackCapacity int `json:"stackCapacity"`
	// CallStackCapacity is the call-frame stack's capacity (§4.4's
	// "default cap 256").
	CallStackCapacity int `json:"callStackCapacity"`
	// GCTriggerBytes is the allocation-byte threshold that triggers a
	// collection (§4.1's "byte threshold").
	GCTriggerBytes int64 `json:"gcTriggerBytes"`
	// ModulePath is a semicolon-separated list of directories searched
	// for required modules, overridden by RANGELUA_PATH.
	ModulePath string `json:"modulePath"`
}

// Default returns the configuration used when no rangelua.jsonc is
// present and no environment variables are set.
func Default() *Config {
	return &Config{
		StackCapacity:     1024,
		CallStackCapacity: 256,
		GCTriggerBytes:    64 << 20, // 64 MiB
	}
}

// Load reads dir/rangelua.jsonc (if present, tolerating JSON-with-comments
// via hujson) over [Default], then applies RANGELUA_PATH. A missing
// config file is not an error.
func Load(dir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dir, "rangelua.jsonc")
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No config file; defaults stand.
	case err != nil:
		return nil, fmt.Errorf("load %s: %w", path, err)
	default:
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if err := jsonv2.Unmarshal(standardized, cfg); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if p := os.Getenv("RANGELUA_PATH"); p != "" {
		cfg.ModulePath = p
	}

	return cfg, nil
}

// ModulePathDirs splits ModulePath on ';', dropping empty segments, the
// way RANGELUA_PATH is documented to be delimited.
func (c *Config) ModulePathDirs() []string {
	if c.ModulePath == "" {
		return nil
	}
	parts := strings.Split(c.ModulePath, ";")
	dirs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			dirs = append(dirs, p)
		}
	}
	return dirs
}
