package core

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemosyne/pkg/agent/tool"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

// rememberTool extracts facts from text and stores them in the memory graph
type rememberTool struct {
	uc *usecase.UseCases
}

func (t *rememberTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "remember",
		Description: "Store information in long-term memory. The text is split into discrete facts; each fact is deduplicated against existing memories, merged into a more specific memory, or recorded as superseding a contradicted one.",
		Parameters: map[string]*gollem.Parameter{
			"text": {
				Type:        gollem.TypeString,
				Description: "The information to remember, in natural language",
				Required:    true,
			},
			"concept_type": {
				Type:        gollem.TypeString,
				Description: "Optional hint for the fact category: skill, preference, goal, fact, opinion, experience, or achievement",
				Required:    false,
			},
		},
	}
}

func (t *rememberTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	text, _ := args["text"].(string)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	conceptType, _ := args["concept_type"].(string)

	tool.Update(ctx, "Storing memory...")

	results, err := t.uc.Remember(ctx, text, types.ConceptType(conceptType))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to remember")
	}

	facts := make([]map[string]any, 0, len(results))
	for _, res := range results {
		facts = append(facts, map[string]any{
			"memory_id": res.MemoryID.String(),
			"content":   res.Content,
			"decision":  string(res.Decision),
		})
	}
	return map[string]any{"facts": facts}, nil
}

// getMemoryTool retrieves one memory by ID
type getMemoryTool struct {
	uc *usecase.UseCases
}

func (t *getMemoryTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "get_memory",
		Description: "Retrieve a single memory by its ID",
		Parameters: map[string]*gollem.Parameter{
			"memory_id": {
				Type:        gollem.TypeString,
				Description: "The ID of the memory to retrieve",
				Required:    true,
			},
		},
	}
}

func (t *getMemoryTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	memoryID, _ := args["memory_id"].(string)
	if memoryID == "" {
		return nil, fmt.Errorf("memory_id is required")
	}

	node, err := t.uc.GetMemory(ctx, types.MemoryID(memoryID))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get memory", goerr.V("memoryID", memoryID))
	}

	return map[string]any{
		"id":           node.ID.String(),
		"content":      node.Content,
		"concept_type": string(node.ConceptType),
		"status":       string(node.Status),
		"updated_at":   node.UpdatedAt,
	}, nil
}

// updateMemoryTool rewrites the content of an existing memory
type updateMemoryTool struct {
	uc *usecase.UseCases
}

func (t *updateMemoryTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "update_memory",
		Description: "Rewrite the content of an existing memory. Updating an incomplete memory (timeout-recovered reasoning) completes it and makes it a normal active memory.",
		Parameters: map[string]*gollem.Parameter{
			"memory_id": {
				Type:        gollem.TypeString,
				Description: "The ID of the memory to update",
				Required:    true,
			},
			"content": {
				Type:        gollem.TypeString,
				Description: "The new content",
				Required:    true,
			},
		},
	}
}

func (t *updateMemoryTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	memoryID, _ := args["memory_id"].(string)
	content, _ := args["content"].(string)
	if memoryID == "" {
		return nil, fmt.Errorf("memory_id is required")
	}
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}

	tool.Update(ctx, fmt.Sprintf("Updating memory %s...", memoryID))

	node, err := t.uc.UpdateMemory(ctx, types.MemoryID(memoryID), content)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update memory", goerr.V("memoryID", memoryID))
	}

	return map[string]any{
		"id":      node.ID.String(),
		"content": node.Content,
		"status":  string(node.Status),
	}, nil
}

// deleteMemoryTool removes a memory and its relations
type deleteMemoryTool struct {
	uc *usecase.UseCases
}

func (t *deleteMemoryTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "delete_memory",
		Description: "Delete a memory by its ID, together with its relations. Use this to remove outdated or incorrect memories.",
		Parameters: map[string]*gollem.Parameter{
			"memory_id": {
				Type:        gollem.TypeString,
				Description: "The ID of the memory to delete",
				Required:    true,
			},
		},
	}
}

func (t *deleteMemoryTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	memoryID, _ := args["memory_id"].(string)
	if memoryID == "" {
		return nil, fmt.Errorf("memory_id is required")
	}

	tool.Update(ctx, fmt.Sprintf("Deleting memory %s...", memoryID))

	if err := t.uc.DeleteMemory(ctx, types.MemoryID(memoryID)); err != nil {
		return nil, goerr.Wrap(err, "failed to delete memory", goerr.V("memoryID", memoryID))
	}

	return map[string]any{"deleted": true}, nil
}
