package usecase

import (
	"fmt"
	"strings"

	"academybot/internal/domain"
)

// systemPrompt defines the assistant's role and refusal policy. It is the
// single home for prompt templates.
const systemPrompt = `You are a Creditor Academy support assistant. You help members with account access, billing, subscriptions, course content, live classes and technical support.

Answer only from the provided context. If the context does not contain the answer, say you don't know and direct the member to support@creditoracademy.com. Be direct, use simple language, and keep answers concise but complete.`

// PromptAssembler composes provider prompts from retrieved context.
type PromptAssembler struct {
	perHitChars int
	totalChars  int
}

// NewPromptAssembler creates an assembler with the given character caps.
func NewPromptAssembler(perHitChars, totalChars int) *PromptAssembler {
	if perHitChars <= 0 {
		perHitChars = 800
	}
	if totalChars <= 0 {
		totalChars = 4000
	}
	return &PromptAssembler{perHitChars: perHitChars, totalChars: totalChars}
}

// SystemPrompt returns the system message for provider calls.
func (a *PromptAssembler) SystemPrompt() string {
	return systemPrompt
}

// AssembleRAG builds the user prompt with a context block from the hits, in
// rank order. It returns the prompt and the IDs of the records actually
// included, which become the response attribution.
func (a *PromptAssembler) AssembleRAG(question string, hits []domain.RetrievedHit) (string, []string) {
	var ctx strings.Builder
	var ids []string

	for i, hit := range hits {
		block := fmt.Sprintf("Q%d: %s\nA%d: %s\n\n",
			i+1, hit.Record.Question, i+1, truncate(hit.Record.Answer, a.perHitChars))
		if ctx.Len()+len(block) > a.totalChars {
			break
		}
		ctx.WriteString(block)
		ids = append(ids, hit.Record.ID)
	}

	if len(ids) == 0 {
		return a.AssembleDirect(question), nil
	}

	prompt := fmt.Sprintf("Knowledge base context:\n\n%sMember question: %s\n\nAnswer using only the context above.",
		ctx.String(), question)
	return prompt, ids
}

// AssembleDirect builds a prompt with no retrieved context.
func (a *PromptAssembler) AssembleDirect(question string) string {
	return fmt.Sprintf("Member question: %s", question)
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
