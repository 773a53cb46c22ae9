package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", "", "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestEvaluateCommandJSON(t *testing.T) {
	out, err := runCLI(t, "evaluate", "--scenario", "menu_matching", "--sweep", "--json")
	require.NoError(t, err)

	var report struct {
		Results []struct {
			Scenario string             `json:"scenario"`
			Metrics  map[string]float64 `json:"metrics"`
		} `json:"results"`
		Sweep []struct {
			Threshold float64 `json:"threshold"`
		} `json:"sweep"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Results, 1)
	assert.Equal(t, "menu_matching", report.Results[0].Scenario)
	assert.Equal(t, 1.0, report.Results[0].Metrics["match_accuracy"])
	assert.Len(t, report.Sweep, len(sweepCandidates))
}

func TestEvaluateCommandTable(t *testing.T) {
	out, err := runCLI(t, "evaluate")
	require.NoError(t, err)

	assert.Contains(t, out, "SCENARIO")
	assert.Contains(t, out, "intent_detection")
	assert.Contains(t, out, "overall_score")
}

func TestEvaluateCommandUnknownScenario(t *testing.T) {
	_, err := runCLI(t, "evaluate", "--scenario", "nope")
	assert.Error(t, err)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := runCLI(t, "evaluate", "--config", "does/not/exist.yaml")
	assert.Error(t, err)
}

func TestShadowedCatalogRejected(t *testing.T) {
	dir := t.TempDir()
	catalog := filepath.Join(dir, "menu.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte(`items:
  - {id: "1", name: Water, category: Beverages, price: 1, available: true}
  - {id: "2", name: Water Bottle, category: Beverages, price: 3, available: true}
`), 0o644))
	config := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(config, []byte("catalog_file: "+catalog+"\n"), 0o644))

	_, err := runCLI(t, "evaluate", "--config", config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shadowed")
}
