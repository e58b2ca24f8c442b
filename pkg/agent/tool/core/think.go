package core

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/mnemosyne/pkg/agent/tool"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

// thinkStartTool opens an isolated reasoning session
type thinkStartTool struct {
	uc *usecase.UseCases
}

func (t *thinkStartTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "think_start",
		Description: "Start an isolated reasoning session. Thoughts added to the session stay out of long-term memory until committed; an abandoned session is auto-saved as an incomplete memory when it times out.",
		Parameters: map[string]*gollem.Parameter{
			"max_thoughts": {
				Type:        gollem.TypeInteger,
				Description: "Maximum number of thoughts in the session (default: 64)",
				Required:    false,
			},
			"max_depth": {
				Type:        gollem.TypeInteger,
				Description: "Maximum reasoning depth (default: 16)",
				Required:    false,
			},
			"thinking_timeout_sec": {
				Type:        gollem.TypeInteger,
				Description: "Idle seconds before the session times out and auto-saves (default: 300)",
				Required:    false,
			},
		},
	}
}

func (t *thinkStartTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	limits := &model.SessionLimits{}
	if v, err := extractInt64(args, "max_thoughts"); err == nil {
		limits.MaxThoughts = int(v)
	}
	if v, err := extractInt64(args, "max_depth"); err == nil {
		limits.MaxDepth = int(v)
	}
	if v, err := extractInt64(args, "thinking_timeout_sec"); err == nil {
		limits.ThinkingTimeout = time.Duration(v) * time.Second
	}

	session, err := t.uc.StartThink(ctx, limits)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to start think session")
	}

	return map[string]any{
		"session_id":   session.ID.String(),
		"max_thoughts": session.Limits.MaxThoughts,
		"max_depth":    session.Limits.MaxDepth,
	}, nil
}

// thinkAddTool appends a thought to a session
type thinkAddTool struct {
	uc *usecase.UseCases
}

func (t *thinkAddTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "think_add",
		Description: "Add a thought to a reasoning session. Link it to earlier thoughts via parent indices to build a reasoning graph; a thought with multiple parents merges lines of reasoning.",
		Parameters: map[string]*gollem.Parameter{
			"session_id": {
				Type:        gollem.TypeString,
				Description: "The session to add the thought to",
				Required:    true,
			},
			"content": {
				Type:        gollem.TypeString,
				Description: "The thought itself",
				Required:    true,
			},
			"parents": {
				Type:        gollem.TypeArray,
				Description: "Indices of earlier thoughts this one builds on (empty for a new line of reasoning)",
				Items:       &gollem.Parameter{Type: gollem.TypeInteger},
				Required:    false,
			},
		},
	}
}

func (t *thinkAddTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	sessionIDArg, _ := args["session_id"].(string)
	content, _ := args["content"].(string)
	if sessionIDArg == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}
	parents, err := extractIntSlice(args, "parents")
	if err != nil {
		return nil, err
	}

	res, err := t.uc.AddThought(ctx, types.SessionID(sessionIDArg), content, parents)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to add thought", goerr.V("sessionID", sessionIDArg))
	}

	return map[string]any{
		"index":         res.Index,
		"thought_count": res.ThoughtCount,
		"depth":         res.Depth,
	}, nil
}

// thinkRecallTool pulls long-term memories into a session
type thinkRecallTool struct {
	uc *usecase.UseCases
}

func (t *thinkRecallTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "think_recall",
		Description: "Search long-term memory and attach the results to the session as recalled thoughts, annotated with their source memory ID.",
		Parameters: map[string]*gollem.Parameter{
			"session_id": {
				Type:        gollem.TypeString,
				Description: "The session to attach recalled memories to",
				Required:    true,
			},
			"query": {
				Type:        gollem.TypeString,
				Description: "What to recall",
				Required:    true,
			},
			"mode": {
				Type:        gollem.TypeString,
				Description: searchModeDescription,
				Required:    false,
			},
		},
	}
}

func (t *thinkRecallTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	sessionIDArg, _ := args["session_id"].(string)
	query, _ := args["query"].(string)
	if sessionIDArg == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	mode, _ := args["mode"].(string)

	tool.Update(ctx, fmt.Sprintf("Recalling memories: %s", query))

	res, err := t.uc.RecallIntoSession(ctx, types.SessionID(sessionIDArg), query, types.SearchMode(mode))
	if err != nil {
		return nil, goerr.Wrap(err, "recall failed", goerr.V("sessionID", sessionIDArg))
	}

	return map[string]any{
		"indices":        res.Indices,
		"recalled_count": res.RecalledCount,
	}, nil
}

// thinkConcludeTool marks the session conclusion
type thinkConcludeTool struct {
	uc *usecase.UseCases
}

func (t *thinkConcludeTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "think_conclude",
		Description: "Mark one thought as the conclusion of the session. After concluding, the session can only be committed or discarded.",
		Parameters: map[string]*gollem.Parameter{
			"session_id": {
				Type:        gollem.TypeString,
				Description: "The session to conclude",
				Required:    true,
			},
			"index": {
				Type:        gollem.TypeInteger,
				Description: "Index of the conclusion thought",
				Required:    true,
			},
		},
	}
}

func (t *thinkConcludeTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	sessionIDArg, _ := args["session_id"].(string)
	if sessionIDArg == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	index, err := extractInt64(args, "index")
	if err != nil {
		return nil, err
	}

	conclusionIndex, err := t.uc.ConcludeThink(ctx, types.SessionID(sessionIDArg), int(index))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to conclude", goerr.V("sessionID", sessionIDArg))
	}

	return map[string]any{"conclusion_index": conclusionIndex}, nil
}

// thinkCommitTool persists the conclusion into long-term memory
type thinkCommitTool struct {
	uc *usecase.UseCases
}

func (t *thinkCommitTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "think_commit",
		Description: "Persist the session's conclusion (with its reasoning chain) into long-term memory and destroy the session. The stored result is deduplicated like any other memory.",
		Parameters: map[string]*gollem.Parameter{
			"session_id": {
				Type:        gollem.TypeString,
				Description: "The session to commit",
				Required:    true,
			},
			"concept_type": {
				Type:        gollem.TypeString,
				Description: "Category for the stored conclusion (default: fact)",
				Required:    false,
			},
		},
	}
}

func (t *thinkCommitTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	sessionIDArg, _ := args["session_id"].(string)
	if sessionIDArg == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	conceptType, _ := args["concept_type"].(string)

	tool.Update(ctx, "Committing reasoning to memory...")

	res, err := t.uc.CommitThink(ctx, types.SessionID(sessionIDArg), types.ConceptType(conceptType))
	if err != nil {
		return nil, goerr.Wrap(err, "commit failed", goerr.V("sessionID", sessionIDArg))
	}

	return map[string]any{
		"memory_id":          res.MemoryID.String(),
		"decision":           string(res.Decision),
		"thoughts_processed": res.ThoughtsProcessed,
	}, nil
}

// thinkDiscardTool drops a session without saving
type thinkDiscardTool struct {
	uc *usecase.UseCases
}

func (t *thinkDiscardTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "think_discard",
		Description: "Drop a reasoning session and all its thoughts without saving anything.",
		Parameters: map[string]*gollem.Parameter{
			"session_id": {
				Type:        gollem.TypeString,
				Description: "The session to discard",
				Required:    true,
			},
		},
	}
}

func (t *thinkDiscardTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	sessionIDArg, _ := args["session_id"].(string)
	if sessionIDArg == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	count, err := t.uc.DiscardThink(ctx, types.SessionID(sessionIDArg))
	if err != nil {
		return nil, goerr.Wrap(err, "discard failed", goerr.V("sessionID", sessionIDArg))
	}

	return map[string]any{"thoughts_dropped": count}, nil
}

// thinkStatusTool reports a session snapshot
type thinkStatusTool struct {
	uc *usecase.UseCases
}

func (t *thinkStatusTool) Spec() gollem.ToolSpec {
	return gollem.ToolSpec{
		Name:        "think_status",
		Description: "Report the state of a reasoning session: thought count, depth used, and whether a conclusion is marked.",
		Parameters: map[string]*gollem.Parameter{
			"session_id": {
				Type:        gollem.TypeString,
				Description: "The session to inspect",
				Required:    true,
			},
		},
	}
}

func (t *thinkStatusTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	sessionIDArg, _ := args["session_id"].(string)
	if sessionIDArg == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	status, err := t.uc.ThinkStatus(ctx, types.SessionID(sessionIDArg))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get session status", goerr.V("sessionID", sessionIDArg))
	}

	return map[string]any{
		"session_id":     status.SessionID.String(),
		"state":          string(status.State),
		"thought_count":  status.ThoughtCount,
		"max_depth_used": status.MaxDepthUsed,
		"has_conclusion": status.HasConclusion,
	}, nil
}
