package usecase

import (
	"strings"
	"testing"

	"academybot/internal/domain"
)

func hit(id, question, answer string) domain.RetrievedHit {
	return domain.RetrievedHit{
		Record: domain.QARecord{ID: id, Question: question, Answer: answer},
	}
}

func TestAssembleRAGIncludesHitsInRankOrder(t *testing.T) {
	a := NewPromptAssembler(800, 4000)

	prompt, ids := a.AssembleRAG("how do I cancel?", []domain.RetrievedHit{
		hit("t1", "how do I cancel my subscription", "Open Account Settings."),
		hit("t2", "when do classes run", "Tuesdays."),
	})

	if len(ids) != 2 || ids[0] != "t1" || ids[1] != "t2" {
		t.Errorf("unexpected ids: %v", ids)
	}
	if !strings.Contains(prompt, "Q1: how do I cancel my subscription") {
		t.Error("missing first context block")
	}
	if !strings.Contains(prompt, "A2: Tuesdays.") {
		t.Error("missing second context block")
	}
	if !strings.Contains(prompt, "Member question: how do I cancel?") {
		t.Error("missing user question")
	}
	if strings.Index(prompt, "Q1:") > strings.Index(prompt, "Q2:") {
		t.Error("context blocks out of rank order")
	}
}

func TestAssembleRAGPerHitCap(t *testing.T) {
	a := NewPromptAssembler(50, 4000)

	long := strings.Repeat("x", 500)
	prompt, ids := a.AssembleRAG("q", []domain.RetrievedHit{hit("t1", "some long question here", long)})

	if len(ids) != 1 {
		t.Fatalf("expected 1 id, got %d", len(ids))
	}
	if strings.Contains(prompt, strings.Repeat("x", 51)) {
		t.Error("per-hit cap not applied")
	}
}

func TestAssembleRAGTotalCap(t *testing.T) {
	a := NewPromptAssembler(800, 600)

	answer := strings.Repeat("y", 400)
	hits := []domain.RetrievedHit{
		hit("t1", "first question in the corpus", answer),
		hit("t2", "second question in the corpus", answer),
		hit("t3", "third question in the corpus", answer),
	}
	_, ids := a.AssembleRAG("q", hits)

	if len(ids) >= 3 {
		t.Errorf("total cap should drop trailing hits, got %d ids", len(ids))
	}
	if len(ids) == 0 {
		t.Error("expected at least one hit under the cap")
	}
	if ids[0] != "t1" {
		t.Errorf("cap must keep highest-ranked hits, got %v", ids)
	}
}

func TestAssembleRAGNoHitsFallsBackToDirect(t *testing.T) {
	a := NewPromptAssembler(800, 4000)

	prompt, ids := a.AssembleRAG("hello there", nil)
	if ids != nil {
		t.Errorf("expected no ids, got %v", ids)
	}
	if prompt != a.AssembleDirect("hello there") {
		t.Error("expected direct prompt when no context fits")
	}
}

func TestSystemPromptStatesRefusalPolicy(t *testing.T) {
	a := NewPromptAssembler(0, 0)

	sys := a.SystemPrompt()
	if !strings.Contains(sys, "only from the provided context") {
		t.Error("system prompt must restrict answers to context")
	}
	if !strings.Contains(sys, "support@creditoracademy.com") {
		t.Error("system prompt must direct unknowns to support")
	}
}

func TestTruncateRuneBoundary(t *testing.T) {
	s := "héllo"
	got := truncate(s, 2)
	if !strings.HasPrefix(s, got) {
		t.Errorf("truncate broke the string: %q", got)
	}
	for _, r := range got {
		if r == '�' {
			t.Error("truncate split a rune")
		}
	}
	if truncate("abc", 10) != "abc" {
		t.Error("short strings should pass through")
	}
}
