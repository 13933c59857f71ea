// Package condition evaluates jsonlogic predicates for conditional rule
// activation and expiry. Cards carry predicates as plain maps under the
// metadata keys "activation_condition" and "expiry_condition"; the lifecycle
// manager evaluates them against the caller-supplied game state.
package condition

import (
	"fmt"

	"github.com/diegoholiveira/jsonlogic/v3"
)

// Metadata keys the lifecycle manager looks for on conditional rules.
const (
	ActivationKey = "activation_condition"
	ExpiryKey     = "expiry_condition"
)

// Evaluate applies a jsonlogic predicate to the given data context and
// reports whether it evaluates truthy. A malformed predicate is an error,
// never a panic; a nil predicate evaluates false (no predicate, no match).
func Evaluate(predicate map[string]any, data map[string]any) (bool, error) {
	if predicate == nil {
		return false, nil
	}
	if data == nil {
		data = map[string]any{}
	}

	result, err := jsonlogic.ApplyInterface(predicate, data)
	if err != nil {
		return false, fmt.Errorf("evaluate condition: %w", err)
	}
	return truthy(result), nil
}

// FromMetadata extracts a predicate map stored under key in rule metadata.
// Returns nil when the key is absent or not an object.
func FromMetadata(metadata map[string]any, key string) map[string]any {
	if metadata == nil {
		return nil
	}
	pred, ok := metadata[key].(map[string]any)
	if !ok {
		return nil
	}
	return pred
}

// truthy mirrors jsonlogic's notion of truthiness for the result value.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}
