package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dyluth/midden/internal/lock"
	"github.com/dyluth/midden/internal/printer"
	"github.com/dyluth/midden/pkg/store"
)

// Every command answers with exactly one JSON object on stdout carrying a
// "status" field: success, error, or conflict. Human diagnostics (warnings,
// lock contention notes) go to stderr via printer so piped output stays
// machine-readable.

// emitSuccess prints a success envelope with the given extra fields.
func emitSuccess(fields map[string]any) error {
	envelope := map[string]any{"status": "success"}
	for k, v := range fields {
		envelope[k] = v
	}
	return emitJSON(envelope)
}

// emitFailure prints the error/conflict envelope for err and returns a
// terse error so the process exits non-zero. Version conflicts get their
// own status so retrying callers can branch without string matching.
func emitFailure(err error) error {
	envelope := map[string]any{
		"status": "error",
		"error":  err.Error(),
	}

	switch e := err.(type) {
	case *store.VersionConflictError:
		envelope["status"] = "conflict"
		envelope["code"] = "version_conflict"
		envelope["expected_version"] = e.Expected
		envelope["current_version"] = e.Current
	case *store.NotFoundError:
		envelope["code"] = "not_found"
	case *store.AlreadyExistsError:
		envelope["code"] = "already_exists"
	case *lock.TimeoutError:
		envelope["code"] = "lock_timeout"
	default:
		envelope["code"] = "invalid_request"
	}

	if emitErr := emitJSON(envelope); emitErr != nil {
		return emitErr
	}

	return fmt.Errorf("%s", err.Error())
}

func emitJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(data))
	return nil
}

// reportWarnings surfaces index degradation warnings on stderr.
func reportWarnings(warnings []string) {
	for _, w := range warnings {
		printer.Warning("%s\n", w)
	}
}

// parseKeyValue splits a repeatable "key=value" flag. Values that parse as
// JSON become structured properties; everything else stays a string.
func parseKeyValue(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	props := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property '%s': expected key=value", pair)
		}

		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			props[key] = parsed
		} else {
			props[key] = value
		}
	}

	return props, nil
}

// parseTimestamp accepts RFC 3339 timestamps on CLI flags.
func parseTimestamp(flag, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s '%s': expected RFC 3339 timestamp (e.g. 2026-01-02T15:04:05Z)", flag, value)
	}
	return t, nil
}
