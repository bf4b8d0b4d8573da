package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const cubeScene = `config:
  layer_height: 0.2
objects:
  - name: cube
    volumes:
      - name: body
        mesh: {source: cube.stl, triangles: 12}
    instances:
      - at: [0, 0]
`

type cliEnv struct {
	configPath string
	scenePath  string
	stateDir   string
}

func setupCLIEnv(t *testing.T) *cliEnv {
	t.Helper()

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	stateDir := filepath.Join(base, "state")
	configPath := filepath.Join(base, "config.toml")
	content := "[paths]\n" +
		"state_dir = \"" + stateDir + "\"\n" +
		"log_dir = \"" + filepath.Join(base, "logs") + "\"\n\n" +
		"[logging]\nlevel = \"error\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	scenePath := filepath.Join(base, "plate.yaml")
	if err := os.WriteFile(scenePath, []byte(cubeScene), 0o644); err != nil {
		t.Fatalf("write scene: %v", err)
	}
	return &cliEnv{configPath: configPath, scenePath: scenePath, stateDir: stateDir}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n---\n%s", needle, haystack)
	}
}

func TestApplyReportsSeverityAndSteps(t *testing.T) {
	env := setupCLIEnv(t)

	out, _, err := runCLI(t, []string{"apply", env.scenePath}, env.configPath)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	requireContains(t, out, "changed")
	requireContains(t, out, "cube")
	requireContains(t, out, "Gcode Export")
}

func TestApplySameSceneTwiceIsUnchanged(t *testing.T) {
	env := setupCLIEnv(t)

	out, _, err := runCLI(t, []string{"apply", "--no-process", "--no-journal", env.scenePath, env.scenePath}, env.configPath)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	requireContains(t, out, "unchanged")
}

func TestApplyMissingSceneFails(t *testing.T) {
	env := setupCLIEnv(t)

	if _, _, err := runCLI(t, []string{"apply", filepath.Join(t.TempDir(), "missing.yaml")}, env.configPath); err == nil {
		t.Fatal("expected error for missing scene")
	}
}

func TestApplyStopsAtRequestedStep(t *testing.T) {
	env := setupCLIEnv(t)

	out, _, err := runCLI(t, []string{"apply", "--no-journal", "--object", "cube", "--to-step", "slice", env.scenePath}, env.configPath)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	requireContains(t, out, "processed 1 object steps and 0 print steps")
	requireContains(t, out, "1/12")

	if _, _, err := runCLI(t, []string{"apply", "--no-journal", "--to-step", "polish", env.scenePath}, env.configPath); err == nil {
		t.Fatal("expected error for unknown step")
	}
	if _, _, err := runCLI(t, []string{"apply", "--no-journal", "--object", "sphere", env.scenePath}, env.configPath); err == nil {
		t.Fatal("expected error for unknown object")
	}
}

func TestTreeShowsObjects(t *testing.T) {
	env := setupCLIEnv(t)

	out, _, err := runCLI(t, []string{"tree", env.scenePath}, env.configPath)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	requireContains(t, out, "cube")
	requireContains(t, out, "regions")
}

func TestHistoryListsApplies(t *testing.T) {
	env := setupCLIEnv(t)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No reconciliations recorded")

	if _, _, err := runCLI(t, []string{"apply", env.scenePath}, env.configPath); err != nil {
		t.Fatalf("apply: %v", err)
	}
	out, _, err = runCLI(t, []string{"history", "--warnings"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "plate.yaml")
	requireContains(t, out, "changed")
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLIEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[engine]")
	requireContains(t, out, env.stateDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}
