// Package contextpack assembles the prompt context block under fixed
// per-section token budgets.
package contextpack

import (
	"strings"

	"github.com/scrypster/keepsake/internal/tokens"
)

// Budget fixes the per-section token allowances. MaxTotal is advisory; each
// section cap is enforced independently.
type Budget struct {
	Persona  int `json:"persona"`
	State    int `json:"state"`
	Memory   int `json:"memory"`
	Tool     int `json:"tool"`
	MaxTotal int `json:"total"`
}

// DefaultBudget returns the standard allocation.
func DefaultBudget() Budget {
	return Budget{
		Persona:  450,
		State:    300,
		Memory:   900,
		Tool:     600,
		MaxTotal: 2200,
	}
}

// truncationMarker is appended to any section cut at its budget.
const truncationMarker = "…"

// charsPerTokenFallback converts a token cap to a character cut point for the
// crude section truncation.
const charsPerTokenFallback = 4

// Input is the raw material for one assembly.
type Input struct {
	Persona     string
	State       string
	MemoryCards []string
	ToolResults []string
	UserInput   string
}

// Output is the assembled context with per-section results and the advisory
// total estimate.
type Output struct {
	Persona string
	State   string
	// Memory holds the included cards, in input order.
	Memory []string
	Tool   []string

	// EstimatedTokens sums the included sections plus the raw user input.
	// It is reported for observability, not enforced against MaxTotal.
	EstimatedTokens int
}

// Assembler packs sections under a Budget.
type Assembler struct {
	budget Budget
}

// NewAssembler returns an assembler; zero budget fields fall back to the
// defaults.
func NewAssembler(budget Budget) *Assembler {
	def := DefaultBudget()
	if budget.Persona <= 0 {
		budget.Persona = def.Persona
	}
	if budget.State <= 0 {
		budget.State = def.State
	}
	if budget.Memory <= 0 {
		budget.Memory = def.Memory
	}
	if budget.Tool <= 0 {
		budget.Tool = def.Tool
	}
	if budget.MaxTotal <= 0 {
		budget.MaxTotal = def.MaxTotal
	}
	return &Assembler{budget: budget}
}

// Budget returns the effective budget.
func (a *Assembler) Budget() Budget {
	return a.budget
}

// Assemble packs the input under the budget. Persona and state are truncated
// independently to their caps; memory cards and tool results accumulate in
// input order and stop at the first entry that would overflow the section.
func (a *Assembler) Assemble(in Input) Output {
	out := Output{
		Persona: truncateToBudget(in.Persona, a.budget.Persona),
		State:   truncateToBudget(in.State, a.budget.State),
	}

	out.Memory = packSection(in.MemoryCards, a.budget.Memory)
	out.Tool = packSection(in.ToolResults, a.budget.Tool)

	total := tokens.Estimate(out.Persona) + tokens.Estimate(out.State)
	for _, card := range out.Memory {
		total += tokens.Estimate(card)
	}
	for _, result := range out.Tool {
		total += tokens.Estimate(result)
	}
	total += tokens.Estimate(in.UserInput)
	out.EstimatedTokens = total

	return out
}

// truncateToBudget cuts text at cap×4 characters with an ellipsis marker when
// its estimate exceeds cap.
func truncateToBudget(text string, limit int) string {
	if text == "" || tokens.Estimate(text) <= limit {
		return text
	}
	runes := []rune(text)
	cut := limit * charsPerTokenFallback
	if cut > len(runes) {
		cut = len(runes)
	}
	return string(runes[:cut]) + truncationMarker
}

// packSection accumulates entries until the next one would overflow the cap.
// Iteration stops at the first overflow rather than skipping past it.
func packSection(entries []string, limit int) []string {
	var out []string
	used := 0
	for _, entry := range entries {
		if entry == "" {
			continue
		}
		cost := tokens.Estimate(entry)
		if used+cost > limit {
			break
		}
		out = append(out, entry)
		used += cost
	}
	return out
}

// Render flattens the assembled output into the final context text, skipping
// empty sections.
func (o Output) Render() string {
	var b strings.Builder
	if o.Persona != "" {
		b.WriteString(o.Persona)
		b.WriteString("\n\n")
	}
	if o.State != "" {
		b.WriteString(o.State)
		b.WriteString("\n\n")
	}
	if len(o.Memory) > 0 {
		b.WriteString("相关记忆:\n")
		for _, card := range o.Memory {
			b.WriteString("- ")
			b.WriteString(card)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(o.Tool) > 0 {
		b.WriteString("工具结果:\n")
		for _, result := range o.Tool {
			b.WriteString("- ")
			b.WriteString(result)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
