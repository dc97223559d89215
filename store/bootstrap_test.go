package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestBootstrapLoadsTriggersAndConditions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "triggers-data.json", `{"triggers":[
		{"tenant_id":"acme","id":"t1","name":"high-cpu","enabled":true,"firing_match":"ALL","auto_resolve_match":"ALL"}
	]}`)
	writeFile(t, dir, "conditions-data.json", `{"conditions":[
		{"tenant_id":"acme","trigger_id":"t1","mode":"FIRING","condition":{"tenant_id":"acme","trigger_id":"t1","trigger_mode":"FIRING","type":"THRESHOLD","condition_set_size":1,"condition_set_index":1,"threshold":{"data_id":"cpu","operator":"GT","threshold":90}}}
	]}`)

	s := NewMemoryStore()
	if err := Bootstrap(context.Background(), s, dir); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	triggers, err := s.Triggers(context.Background(), "acme")
	if err != nil || len(triggers) != 1 {
		t.Fatalf("expected 1 bootstrapped trigger, got %v err=%v", triggers, err)
	}

	conditions, err := s.Conditions(context.Background(), "acme", "t1", "FIRING")
	if err != nil || len(conditions) != 1 {
		t.Fatalf("expected 1 bootstrapped condition, got %v err=%v", conditions, err)
	}
}

func TestBootstrapSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewMemoryStore()
	if err := Bootstrap(context.Background(), s, dir); err != nil {
		t.Fatalf("expected no error when bootstrap files are absent, got %v", err)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
