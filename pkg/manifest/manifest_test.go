// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

const analyseJSON = `{
  "name": "analyse",
  "version": "2.0.0",
  "private": true,
  "dependencies": {
    "common": "workspace:*",
    "chessground": "^9.0.0",
    "ceval": "workspace:*"
  },
  "build": {
    "alias": "analysis",
    "bundle": [
      {"input": "src/main.ts", "output": "analysisBoard", "importName": "LichessAnalyse"},
      {"input": "src/study/index.ts", "output": "analyse.study", "warn": "silent"}
    ],
    "pre": [["node", "gen.mjs"], ["touch", "ready"]],
    "post": [["echo", "done"]]
  }
}`

func TestParse(t *testing.T) {
	t.Parallel()

	m, err := Parse([]byte(analyseJSON), "analyse/package.json")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if m.Name != "analyse" {
		t.Errorf("Name = %q", m.Name)
	}
	// Declaration order must survive decoding.
	if want := []string{"common", "chessground", "ceval"}; !slices.Equal(m.Dependencies, want) {
		t.Errorf("Dependencies = %v, want %v", m.Dependencies, want)
	}
	if m.Build.Alias != "analysis" {
		t.Errorf("Alias = %q", m.Build.Alias)
	}
	if len(m.Build.Bundle) != 2 {
		t.Fatalf("expected 2 bundles, got %d", len(m.Build.Bundle))
	}
	if m.Build.Bundle[0].Warn != WarnDefault {
		t.Errorf("default warn mode = %q", m.Build.Bundle[0].Warn)
	}
	if m.Build.Bundle[1].Warn != WarnSilent {
		t.Errorf("explicit warn mode = %q", m.Build.Bundle[1].Warn)
	}
	if len(m.Build.Pre) != 2 || !slices.Equal(m.Build.Pre[0], []string{"node", "gen.mjs"}) {
		t.Errorf("Pre = %v", m.Build.Pre)
	}
}

func TestParse_NoBuildSection(t *testing.T) {
	t.Parallel()

	m, err := Parse([]byte(`{"name": "common", "dependencies": {"snabbdom": "3.5.1"}}`), "package.json")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(m.Build.Bundle) != 0 || len(m.Build.Pre) != 0 {
		t.Errorf("expected empty build, got %+v", m.Build)
	}
	if !slices.Equal(m.Dependencies, []string{"snabbdom"}) {
		t.Errorf("Dependencies = %v", m.Dependencies)
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want string
	}{
		{"missing name", `{"version": "1.0.0"}`, "name"},
		{"empty input", `{"name": "x", "build": {"bundle": [{"input": ""}]}}`, "input"},
		{"unknown warn mode", `{"name": "x", "build": {"bundle": [{"input": "a.ts", "warn": "loud"}]}}`, "warn"},
		{"empty hook", `{"name": "x", "build": {"pre": [[]]}}`, "pre"},
		{"unknown build key", `{"name": "x", "build": {"rollup": []}}`, "rollup"},
		{"not json", `{"name": `, "package.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.data), "package.json")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestBuild_IsTrigger(t *testing.T) {
	t.Parallel()

	yes, no := true, false
	tests := []struct {
		name  string
		build Build
		want  []bool
	}{
		{"first by default", Build{Bundle: []Bundle{{Input: "a"}, {Input: "b"}}}, []bool{true, false}},
		{"explicit wins", Build{Bundle: []Bundle{{Input: "a"}, {Input: "b", Trigger: &yes}}}, []bool{false, true}},
		{"explicit false", Build{Bundle: []Bundle{{Input: "a", Trigger: &no}, {Input: "b"}}}, []bool{false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for i, want := range tt.want {
				if got := tt.build.IsTrigger(i); got != want {
					t.Errorf("IsTrigger(%d) = %v, want %v", i, got, want)
				}
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(analyseJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := ParseFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("ParseFile() error: %v", err)
	}
	if m.Name != "analyse" {
		t.Errorf("Name = %q", m.Name)
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), FileName)); err == nil {
		t.Error("expected error for missing manifest")
	}
}
