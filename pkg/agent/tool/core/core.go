package core

import (
	"fmt"

	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

// New builds the full tool set for the memory agent: CRUD and recall over
// the memory graph plus the think session surface.
func New(uc *usecase.UseCases) []gollem.Tool {
	return []gollem.Tool{
		&rememberTool{uc: uc},
		&getMemoryTool{uc: uc},
		&updateMemoryTool{uc: uc},
		&deleteMemoryTool{uc: uc},
		&searchMemoryTool{uc: uc},
		&searchByConceptTool{uc: uc},
		&memoryGraphTool{uc: uc},
		&reasoningChainTool{uc: uc},
		&statsTool{uc: uc},
		&thinkStartTool{uc: uc},
		&thinkAddTool{uc: uc},
		&thinkRecallTool{uc: uc},
		&thinkConcludeTool{uc: uc},
		&thinkCommitTool{uc: uc},
		&thinkDiscardTool{uc: uc},
		&thinkStatusTool{uc: uc},
	}
}

// extractInt64 extracts an int64 value from args map, accepting int, int64, or float64
func extractInt64(args map[string]any, key string) (int64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%s is required", key)
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("%s must be an integer, got %T", key, v)
	}
}

// extractIntSlice extracts a list of integers from args map. JSON arrays
// arrive as []any of float64.
func extractIntSlice(args map[string]any, key string) ([]int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an array of integers, got %T", key, v)
	}
	result := make([]int, 0, len(raw))
	for _, item := range raw {
		n, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("%s must contain integers, got %T", key, item)
		}
		result = append(result, int(n))
	}
	return result, nil
}
