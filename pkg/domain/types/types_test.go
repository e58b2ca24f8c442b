package types_test

import (
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

func TestConceptType(t *testing.T) {
	for _, c := range types.AllConceptTypes() {
		gt.Bool(t, c.IsValid()).True()
	}
	gt.Bool(t, types.ConceptType("memory").IsValid()).False()
	gt.Bool(t, types.ConceptType("").IsValid()).False()

	gt.Value(t, types.ConceptType("").Normalize()).Equal(types.ConceptFact)
	gt.Value(t, types.ConceptPreference.Normalize()).Equal(types.ConceptPreference)
}

func TestRelationKind(t *testing.T) {
	for _, k := range types.AllRelationKinds() {
		gt.Bool(t, k.IsValid()).True()
	}
	gt.Bool(t, types.RelationKind("LINKS").IsValid()).False()

	causal := types.CausalRelationKinds()
	gt.Array(t, causal).Length(3)
	for _, k := range causal {
		gt.Bool(t, k.IsCausal()).True()
	}
	gt.Bool(t, types.RelationSupersedes.IsCausal()).False()
	gt.Bool(t, types.RelationRelatesTo.IsCausal()).False()
}

func TestSearchModeTiers(t *testing.T) {
	gt.Value(t, types.SearchMode("").Normalize()).Equal(types.SearchModeContextual)
	gt.Bool(t, types.SearchMode("shallow").IsValid()).False()

	// Each tier widens the window and expands deeper than the previous one.
	gt.Value(t, types.SearchModeRecent.Window()).Equal(4 * time.Hour)
	gt.Value(t, types.SearchModeContextual.Window()).Equal(30 * 24 * time.Hour)
	gt.Value(t, types.SearchModeDeep.Window()).Equal(90 * 24 * time.Hour)
	gt.Value(t, types.SearchModeFull.Window()).Equal(time.Duration(0))

	gt.Value(t, types.SearchModeRecent.MaxDepth()).Equal(1)
	gt.Value(t, types.SearchModeContextual.MaxDepth()).Equal(2)
	gt.Value(t, types.SearchModeDeep.MaxDepth()).Equal(3)
	gt.Value(t, types.SearchModeFull.MaxDepth()).Equal(4)

	for _, m := range types.AllSearchModes() {
		gt.Bool(t, m.IsValid()).True()
		if m == types.SearchModeFull {
			gt.Bool(t, m.IncludesSuperseded()).True()
		} else {
			gt.Bool(t, m.IncludesSuperseded()).False()
		}
	}
}

func TestSessionState(t *testing.T) {
	gt.Bool(t, types.SessionActive.IsTerminal()).False()
	gt.Bool(t, types.SessionConcluding.IsTerminal()).False()
	gt.Bool(t, types.SessionCommitted.IsTerminal()).True()
	gt.Bool(t, types.SessionDiscarded.IsTerminal()).True()
	gt.Bool(t, types.SessionTimedOut.IsTerminal()).True()

	gt.Bool(t, types.SessionState("paused").IsValid()).False()
}

func TestNodeStatus(t *testing.T) {
	for _, s := range types.AllNodeStatuses() {
		gt.Bool(t, s.IsValid()).True()
	}
	gt.Value(t, types.NodeStatus("").Normalize()).Equal(types.StatusActive)
	gt.Bool(t, types.NodeStatus("archived").IsValid()).False()
}

func TestIDGeneration(t *testing.T) {
	memID := types.NewMemoryID()
	gt.Bool(t, strings.HasPrefix(memID.String(), "mem_")).True()

	sesID := types.NewSessionID()
	gt.Bool(t, strings.HasPrefix(sesID.String(), "ses_")).True()

	relID := types.NewRelationID()
	gt.Bool(t, strings.HasPrefix(relID.String(), "rel_")).True()

	entID := types.NewEntityID()
	gt.Bool(t, strings.HasPrefix(entID.String(), "ent_")).True()

	gt.Value(t, types.NewMemoryID()).NotEqual(types.NewMemoryID())
}
