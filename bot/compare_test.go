// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Anansitrading/cxdb/cxdb"
)

// turnPages serves canned pages per context ID.
type turnPages struct {
	pages map[int64][]cxdb.Turn
	errs  map[int64]error
}

func (s *turnPages) GetLast(_ context.Context, contextID int64, _ int) ([]cxdb.Turn, error) {
	if err := s.errs[contextID]; err != nil {
		return nil, err
	}
	return s.pages[contextID], nil
}

func idTurns(t *testing.T, ids ...int64) []cxdb.Turn {
	t.Helper()
	turns := make([]cxdb.Turn, len(ids))
	for i, id := range ids {
		turns[i] = conversationTurn(t, id, int64(i+1), "user", "content")
	}
	return turns
}

func TestCompareBranchesSharedAndUnique(t *testing.T) {
	source := &turnPages{pages: map[int64][]cxdb.Turn{
		1: idTurns(t, 1, 2, 3, 5),
		2: idTurns(t, 1, 2, 4, 5),
	}}

	comparison, err := CompareBranches(context.Background(), source, []int64{1, 2}, 20)
	if err != nil {
		t.Fatalf("CompareBranches: %v", err)
	}

	if comparison.SharedCount != 3 {
		t.Errorf("SharedCount = %d, want 3", comparison.SharedCount)
	}
	if len(comparison.Branches) != 2 {
		t.Fatalf("got %d branches, want 2", len(comparison.Branches))
	}
	for i, wantUnique := range []int{1, 1} {
		branch := comparison.Branches[i]
		if branch.UniqueCount != wantUnique {
			t.Errorf("branch CTX-%d unique = %d, want %d", branch.ContextID, branch.UniqueCount, wantUnique)
		}
		if branch.TurnCount != 4 {
			t.Errorf("branch CTX-%d turn count = %d, want 4", branch.ContextID, branch.TurnCount)
		}
	}
}

func TestCompareBranchesEmptyBranchSharesNothing(t *testing.T) {
	source := &turnPages{pages: map[int64][]cxdb.Turn{
		1: idTurns(t, 1, 2, 3),
		2: nil,
	}}

	comparison, err := CompareBranches(context.Background(), source, []int64{1, 2}, 20)
	if err != nil {
		t.Fatalf("CompareBranches: %v", err)
	}
	if comparison.SharedCount != 0 {
		t.Errorf("SharedCount = %d, want 0", comparison.SharedCount)
	}
	if comparison.Branches[0].UniqueCount != 3 {
		t.Errorf("CTX-1 unique = %d, want 3", comparison.Branches[0].UniqueCount)
	}
	if comparison.Branches[1].TurnCount != 0 {
		t.Errorf("CTX-2 turn count = %d, want 0", comparison.Branches[1].TurnCount)
	}
}

func TestCompareBranchesFetchErrorFailsWhole(t *testing.T) {
	boom := errors.New("gateway down")
	source := &turnPages{
		pages: map[int64][]cxdb.Turn{1: idTurns(t, 1)},
		errs:  map[int64]error{2: boom},
	}

	_, err := CompareBranches(context.Background(), source, []int64{1, 2}, 20)
	if err == nil {
		t.Fatal("expected error when one branch fails to fetch")
	}
	if !errors.Is(err, boom) {
		t.Errorf("error does not wrap the fetch failure: %v", err)
	}
	if !strings.Contains(err.Error(), "CTX-2") {
		t.Errorf("error does not name the failing branch: %v", err)
	}
}

func TestCompareBranchesDuplicateInputPreserved(t *testing.T) {
	source := &turnPages{pages: map[int64][]cxdb.Turn{5: idTurns(t, 10, 11)}}

	comparison, err := CompareBranches(context.Background(), source, []int64{5, 5}, 20)
	if err != nil {
		t.Fatalf("CompareBranches: %v", err)
	}
	if len(comparison.Branches) != 2 {
		t.Fatalf("got %d branches, want 2", len(comparison.Branches))
	}
	if comparison.SharedCount != 2 {
		t.Errorf("SharedCount = %d, want 2", comparison.SharedCount)
	}
}

func TestComparisonRender(t *testing.T) {
	source := &turnPages{pages: map[int64][]cxdb.Turn{
		1: idTurns(t, 1, 2),
		2: idTurns(t, 1, 3),
	}}
	comparison, err := CompareBranches(context.Background(), source, []int64{1, 2}, 20)
	if err != nil {
		t.Fatalf("CompareBranches: %v", err)
	}

	got := comparison.Render()
	for _, want := range []string{
		"**Branch Comparison** (2 branches)",
		"### CTX-1 (2 turns)",
		"### CTX-2 (2 turns)",
		"**Shared turns**: 1 | CTX-1 unique: 1 | CTX-2 unique: 1",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("render missing %q:\n%s", want, got)
		}
	}
}

func TestPreviewLinesLastFiveConversationalOnly(t *testing.T) {
	turns := idTurns(t, 1, 2, 3, 4, 5, 6, 7)
	turns = append(turns, cxdb.Turn{TurnID: 8, TypeID: cxdb.TypeToolCall,
		Data: mustPayload(t, cxdb.TypeToolCall, map[int64]any{1: "grep", 5: 1})})

	lines := previewLines(turns)
	if len(lines) != comparePreviewTurns {
		t.Fatalf("got %d preview lines, want %d", len(lines), comparePreviewTurns)
	}
	for _, line := range lines {
		if strings.Contains(line, "grep") {
			t.Errorf("tool call leaked into preview: %q", line)
		}
	}
}

func TestPreviewLinesClipAt120(t *testing.T) {
	long := strings.Repeat("z", 200)
	turns := []cxdb.Turn{conversationTurn(t, 1, 1, "assistant", long)}

	lines := previewLines(turns)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if strings.Contains(lines[0], strings.Repeat("z", 121)) {
		t.Errorf("preview content exceeds 120 characters: %q", lines[0])
	}
	if strings.Contains(lines[0], "...") {
		t.Errorf("preview should clip without a marker: %q", lines[0])
	}
}
