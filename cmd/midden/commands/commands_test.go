package commands

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// runCommand executes the CLI with args and returns the parsed JSON
// envelope from stdout plus the command error.
func runCommand(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w

	rootCmd.SetArgs(args)
	execErr := rootCmd.Execute()

	w.Close()
	os.Stdout = old

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}

	var envelope map[string]any
	if len(out) > 0 {
		if err := json.Unmarshal(out, &envelope); err != nil {
			t.Fatalf("stdout is not a single JSON object: %v\noutput: %s", err, out)
		}
	}
	return envelope, execErr
}

func TestCommands_EntityLifecycle(t *testing.T) {
	root := filepath.Join(t.TempDir(), "store")
	base := []string{"--root", root, "--config", filepath.Join(root, "midden.yml")}
	withBase := func(args ...string) []string { return append(append([]string{}, base...), args...) }

	// create
	envelope, err := runCommand(t, withBase("create", "blog-post", "post-1",
		"--org", "acme", "--project", "blog",
		"--prop", "title=Launch week", "--prop", "draft=true",
		"--tag", "q3")...)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if envelope["status"] != "success" {
		t.Fatalf("expected success envelope, got %v", envelope)
	}
	entityPath, _ := envelope["entity_path"].(string)
	if _, statErr := os.Stat(entityPath); statErr != nil {
		t.Errorf("entity_path %q should exist: %v", entityPath, statErr)
	}

	// duplicate create
	envelope, err = runCommand(t, withBase("create", "blog-post", "post-1",
		"--org", "acme", "--project", "blog")...)
	if err == nil {
		t.Fatal("duplicate create should fail")
	}
	if envelope["status"] != "error" || envelope["code"] != "already_exists" {
		t.Errorf("expected already_exists error envelope, got %v", envelope)
	}

	// record-step
	envelope, err = runCommand(t, withBase("record-step", "blog-post", "post-1",
		"--step", "commit", "--action", "commit",
		"--execution-status", "completed", "--outcome", "success",
		"--phase", "build", "--workflow-id", "publish", "--run-id", "run-1")...)
	if err != nil {
		t.Fatalf("record-step failed: %v", err)
	}
	if envelope["new_version"] != float64(2) {
		t.Errorf("expected new_version 2, got %v", envelope["new_version"])
	}
	if envelope["execution_count"] != float64(1) {
		t.Errorf("expected execution_count 1, got %v", envelope["execution_count"])
	}
	if envelope["entity_status"] != "completed" {
		t.Errorf("expected entity_status completed, got %v", envelope["entity_status"])
	}

	// update with a satisfied version expectation
	envelope, err = runCommand(t, withBase("update", "blog-post", "post-1",
		"--status", "in_progress", "--expect-version", "2")...)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if envelope["new_version"] != float64(3) {
		t.Errorf("expected new_version 3, got %v", envelope["new_version"])
	}

	// update with a stale version expectation
	envelope, err = runCommand(t, withBase("update", "blog-post", "post-1",
		"--status", "completed", "--expect-version", "1")...)
	if err == nil {
		t.Fatal("stale expect-version should fail")
	}
	if envelope["status"] != "conflict" || envelope["code"] != "version_conflict" {
		t.Errorf("expected conflict envelope, got %v", envelope)
	}
	if envelope["expected_version"] != float64(1) || envelope["current_version"] != float64(3) {
		t.Errorf("conflict envelope should carry both versions, got %v", envelope)
	}

	// get
	envelope, err = runCommand(t, withBase("get", "blog-post", "post-1")...)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	doc, ok := envelope["entity"].(map[string]any)
	if !ok {
		t.Fatalf("expected entity object in envelope, got %v", envelope)
	}
	if doc["status"] != "in_progress" {
		t.Errorf("expected status in_progress, got %v", doc["status"])
	}
	if doc["version"] != float64(3) {
		t.Errorf("expected version 3, got %v", doc["version"])
	}

	// get with field projection
	envelope, err = runCommand(t, withBase("get", "blog-post", "post-1",
		"--field", "properties.title")...)
	if err != nil {
		t.Fatalf("get --field failed: %v", err)
	}
	projected := envelope["entity"].(map[string]any)
	if projected["properties.title"] != "Launch week" {
		t.Errorf("expected projected title, got %v", projected)
	}

	// list
	envelope, err = runCommand(t, withBase("list", "blog-post",
		"--status", "in_progress")...)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if envelope["count"] != float64(1) {
		t.Errorf("expected one in_progress entity, got %v", envelope["count"])
	}

	// query-step
	envelope, err = runCommand(t, withBase("query-step", "commit",
		"--execution-status", "completed")...)
	if err != nil {
		t.Fatalf("query-step failed: %v", err)
	}
	if envelope["count"] != float64(1) {
		t.Errorf("expected one entity with completed commit, got %v", envelope["count"])
	}

	// recent
	envelope, err = runCommand(t, withBase("recent")...)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if envelope["count"] != float64(1) {
		t.Errorf("expected one recent entity, got %v", envelope["count"])
	}

	// rebuild-indices requires --force
	_, err = runCommand(t, withBase("rebuild-indices")...)
	if err == nil {
		t.Error("rebuild-indices without --force should fail")
	}
	envelope, err = runCommand(t, withBase("rebuild-indices", "--force")...)
	if err != nil {
		t.Fatalf("rebuild-indices --force failed: %v", err)
	}
	if envelope["rebuilt"] != true {
		t.Errorf("expected rebuilt true, got %v", envelope)
	}
}

func TestCommands_GetMissingEntity(t *testing.T) {
	root := filepath.Join(t.TempDir(), "store")

	envelope, err := runCommand(t, "--root", root, "--config", filepath.Join(root, "midden.yml"),
		"get", "blog-post", "absent")
	if err == nil {
		t.Fatal("get of a missing entity should fail")
	}
	if envelope["status"] != "error" || envelope["code"] != "not_found" {
		t.Errorf("expected not_found error envelope, got %v", envelope)
	}
}
