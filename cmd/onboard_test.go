package cmd

import (
	"path/filepath"
	"testing"

	"github.com/crystaldolphin/toolhub/internal/config"
)

func TestOnboardSamplesRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	if err := addSamples(&cfg); err != nil {
		t.Fatalf("addSamples: %v", err)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := config.Save(&cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(loaded.Providers) != 1 || loaded.Providers[0].Name != "sample" {
		t.Fatalf("providers = %+v", loaded.Providers)
	}
	if got := loaded.Providers[0].Args; len(got) != 1 || got[0] != "sample-provider" {
		t.Errorf("sample args = %v", got)
	}

	if len(loaded.DynamicTools) != 1 {
		t.Fatalf("dynamic tools = %+v", loaded.DynamicTools)
	}
	params, err := loaded.DynamicTools[0].ParsedParameters()
	if err != nil {
		t.Fatalf("ParsedParameters: %v", err)
	}
	names := params.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("parameter order = %v, want [a b]", names)
	}
}
