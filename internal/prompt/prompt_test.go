package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRegistry_AllRequiredKeysPresent(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	for _, key := range []string{"observe", "plan", "action_gen", "review", "commit", "codegen"} {
		system, err := r.System(key)
		if err != nil {
			t.Fatalf("System(%q): %v", key, err)
		}
		if strings.TrimSpace(system) == "" {
			t.Fatalf("empty system prompt for %q", key)
		}
		if _, err := r.RenderUser(key, map[string]any{}); err != nil {
			t.Fatalf("RenderUser(%q): %v", key, err)
		}
	}
}

func TestRenderUser_SubstitutesPayload(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	out, err := r.RenderUser("plan", map[string]any{
		"goal":  "hold the bridge",
		"intel": map[string]any{"enemies": 3},
	})
	if err != nil {
		t.Fatalf("RenderUser: %v", err)
	}
	if !strings.Contains(out, "hold the bridge") {
		t.Fatalf("goal not rendered:\n%s", out)
	}
	if !strings.Contains(out, "enemies") {
		t.Fatalf("intel not rendered:\n%s", out)
	}
}

func TestRenderUser_UnknownKey(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, err := r.RenderUser("nope", nil); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadOverrides_ReplacesDefaults(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "plan.system.tmpl"), []byte("OVERRIDDEN SYSTEM"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plan.user.tmpl"), []byte("goal is {{.goal}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.LoadOverrides(dir); err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	system, err := r.System("plan")
	if err != nil {
		t.Fatal(err)
	}
	if system != "OVERRIDDEN SYSTEM" {
		t.Fatalf("system not overridden: %q", system)
	}
	user, err := r.RenderUser("plan", map[string]any{"goal": "win"})
	if err != nil {
		t.Fatal(err)
	}
	if user != "goal is win" {
		t.Fatalf("user not overridden: %q", user)
	}
	// Other keys are untouched.
	if system, _ := r.System("commit"); strings.TrimSpace(system) == "" {
		t.Fatal("commit system prompt lost after overrides")
	}
}

func TestLoadOverrides_BadTemplateName(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "plan.tmpl"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.LoadOverrides(dir); err == nil {
		t.Fatal("expected error for malformed template filename")
	}
}
