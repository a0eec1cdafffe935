package entity

import (
	"reflect"
	"testing"
	"time"
)

// TestMergeProperties_OverwriteByKey tests that scalars overwrite by key
func TestMergeProperties_OverwriteByKey(t *testing.T) {
	dst := map[string]any{"title": "Draft", "words": 100}
	src := map[string]any{"title": "Final", "published": true}

	merged := MergeProperties(dst, src)

	want := map[string]any{"title": "Final", "words": 100, "published": true}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("expected %v, got %v", want, merged)
	}

	// Inputs untouched
	if dst["title"] != "Draft" {
		t.Error("MergeProperties mutated its dst argument")
	}
}

// TestMergeProperties_DeepMerge tests recursive merging of nested maps
func TestMergeProperties_DeepMerge(t *testing.T) {
	dst := map[string]any{
		"seo": map[string]any{"title": "a", "keywords": "b"},
	}
	src := map[string]any{
		"seo": map[string]any{"title": "c"},
	}

	merged := MergeProperties(dst, src)

	seo := merged["seo"].(map[string]any)
	if seo["title"] != "c" {
		t.Errorf("expected nested title 'c', got %v", seo["title"])
	}
	if seo["keywords"] != "b" {
		t.Errorf("expected nested keywords 'b' preserved, got %v", seo["keywords"])
	}
}

// TestMergeProperties_MapReplacesScalar tests type-changing overwrites
func TestMergeProperties_MapReplacesScalar(t *testing.T) {
	dst := map[string]any{"meta": "plain"}
	src := map[string]any{"meta": map[string]any{"rich": true}}

	merged := MergeProperties(dst, src)

	if _, ok := merged["meta"].(map[string]any); !ok {
		t.Errorf("expected map to replace scalar, got %T", merged["meta"])
	}
}

// TestMergeProperties_NilInputs tests the nil/nil and one-sided cases
func TestMergeProperties_NilInputs(t *testing.T) {
	if got := MergeProperties(nil, nil); len(got) != 0 || got == nil {
		t.Errorf("expected empty non-nil map, got %v", got)
	}

	got := MergeProperties(nil, map[string]any{"a": 1})
	if got["a"] != 1 {
		t.Errorf("expected src carried over, got %v", got)
	}
}

// TestUnionTags tests set semantics and sorted output
func TestUnionTags(t *testing.T) {
	got := UnionTags([]string{"beta", "alpha"}, []string{"alpha", "gamma", "gamma", ""})
	want := []string{"alpha", "beta", "gamma"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

// TestAppendArtifacts tests append-only ordering
func TestAppendArtifacts(t *testing.T) {
	now := time.Now().UTC()
	existing := []Artifact{{Type: "draft", Path: "a.md", CreatedAt: now}}
	added := []Artifact{{Type: "final", Path: "b.md", CreatedAt: now}}

	got := AppendArtifacts(existing, added)
	if len(got) != 2 || got[0].Path != "a.md" || got[1].Path != "b.md" {
		t.Errorf("unexpected artifact order: %v", got)
	}
}

// TestDeriveStatus tests the overall-status derivation policy
func TestDeriveStatus(t *testing.T) {
	step := func(s ExecutionStatus) StepStatusRecord {
		return StepStatusRecord{ExecutionStatus: s}
	}

	testCases := []struct {
		name  string
		steps map[string]StepStatusRecord
		want  Status
	}{
		{"no steps", map[string]StepStatusRecord{}, StatusPending},
		{"nil steps", nil, StatusPending},
		{"single started", map[string]StepStatusRecord{
			"a": step(ExecutionStarted)}, StatusInProgress},
		{"in progress wins over failed", map[string]StepStatusRecord{
			"a": step(ExecutionFailed), "b": step(ExecutionInProgress)}, StatusInProgress},
		{"any failed", map[string]StepStatusRecord{
			"a": step(ExecutionCompleted), "b": step(ExecutionFailed)}, StatusFailed},
		{"all completed", map[string]StepStatusRecord{
			"a": step(ExecutionCompleted), "b": step(ExecutionCompleted)}, StatusCompleted},
		{"mixed skipped and completed", map[string]StepStatusRecord{
			"a": step(ExecutionCompleted), "b": step(ExecutionSkipped)}, StatusInProgress},
		{"all skipped", map[string]StepStatusRecord{
			"a": step(ExecutionSkipped)}, StatusInProgress},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStatus(tc.steps); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
