package entity

import "sort"

// The store applies updates as a fixed set of named merge operations rather
// than whole-document replacement: status is replaced, properties are
// deep-merged, artifacts are appended, tags are unioned. Keeping the merge
// rules here, next to the schema, lets the store stay a thin
// lock-read-merge-write loop.

// MergeProperties deep-merges src into dst and returns the result.
// Scalar and list values in src overwrite dst by key; nested maps are
// merged recursively. dst is not modified.
func MergeProperties(dst, src map[string]any) map[string]any {
	if dst == nil && src == nil {
		return map[string]any{}
	}

	merged := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		merged[k] = v
	}

	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := merged[k].(map[string]any)
		if srcIsMap && dstIsMap {
			merged[k] = MergeProperties(dstMap, srcMap)
			continue
		}
		merged[k] = v
	}

	return merged
}

// UnionTags merges two tag lists with set semantics and returns a sorted
// result. Duplicates within either input are dropped.
func UnionTags(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	union := make([]string, 0, len(existing)+len(added))

	for _, lists := range [][]string{existing, added} {
		for _, tag := range lists {
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			union = append(union, tag)
		}
	}

	sort.Strings(union)
	return union
}

// AppendArtifacts returns existing with added appended in order.
// Artifacts are append-only: no deduplication, no rewriting.
func AppendArtifacts(existing, added []Artifact) []Artifact {
	out := make([]Artifact, 0, len(existing)+len(added))
	out = append(out, existing...)
	out = append(out, added...)
	return out
}

// DeriveStatus recomputes an entity's overall status from the aggregate of
// its step execution statuses. The policy is deterministic:
//
//	no steps                          → pending
//	any step started or in_progress   → in_progress
//	any step failed                   → failed
//	all steps completed               → completed
//	otherwise (mixed skipped/completed) → in_progress
func DeriveStatus(steps map[string]StepStatusRecord) Status {
	if len(steps) == 0 {
		return StatusPending
	}

	anyFailed := false
	allCompleted := true
	for _, rec := range steps {
		switch rec.ExecutionStatus {
		case ExecutionStarted, ExecutionInProgress:
			return StatusInProgress
		case ExecutionFailed:
			anyFailed = true
			allCompleted = false
		case ExecutionSkipped:
			allCompleted = false
		}
	}

	if anyFailed {
		return StatusFailed
	}
	if allCompleted {
		return StatusCompleted
	}
	return StatusInProgress
}
