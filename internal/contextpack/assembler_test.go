package contextpack

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/keepsake/internal/tokens"
)

func TestAssembleShortSectionsUntouched(t *testing.T) {
	a := NewAssembler(Budget{})
	out := a.Assemble(Input{
		Persona:   "你是一个温柔的伙伴",
		State:     "心情: 平静",
		UserInput: "你好",
	})

	assert.Equal(t, "你是一个温柔的伙伴", out.Persona)
	assert.Equal(t, "心情: 平静", out.State)
	assert.Greater(t, out.EstimatedTokens, 0)
}

func TestPersonaTruncation(t *testing.T) {
	a := NewAssembler(Budget{})
	persona := strings.Repeat("x", 2000) // ~500 tokens, over the 450 cap

	out := a.Assemble(Input{Persona: persona})

	runes := []rune(out.Persona)
	// cap×4 characters plus the ellipsis marker.
	assert.Len(t, runes, 450*4+1)
	assert.Equal(t, '…', runes[len(runes)-1])
}

func TestStateTruncationCJK(t *testing.T) {
	a := NewAssembler(Budget{State: 50})
	state := strings.Repeat("好", 300) // 300/1.5 = 200 tokens

	out := a.Assemble(Input{State: state})

	runes := []rune(out.State)
	assert.Len(t, runes, 50*4+1)
}

func TestMemoryCardsStopAtFirstOverflow(t *testing.T) {
	a := NewAssembler(Budget{Memory: 30})
	big := strings.Repeat("y", 100)   // 25 tokens
	small := strings.Repeat("z", 16)  // 4 tokens
	huge := strings.Repeat("w", 200)  // 50 tokens
	tail := strings.Repeat("v", 8)    // 2 tokens, would fit but comes after huge

	out := a.Assemble(Input{MemoryCards: []string{big, small, huge, tail}})

	// big(25)+small(4)=29 fits; huge overflows and iteration stops there,
	// so tail is never considered.
	require.Len(t, out.Memory, 2)
	assert.Equal(t, big, out.Memory[0])
	assert.Equal(t, small, out.Memory[1])
}

func TestEstimatedTokensIncludesUserInput(t *testing.T) {
	a := NewAssembler(Budget{})
	userInput := strings.Repeat("q", 40) // 10 tokens

	base := a.Assemble(Input{Persona: "p"})
	withInput := a.Assemble(Input{Persona: "p", UserInput: userInput})

	assert.Equal(t, tokens.Estimate(userInput), withInput.EstimatedTokens-base.EstimatedTokens)
}

func TestRenderSkipsEmptySections(t *testing.T) {
	out := Output{
		Persona: "角色",
		Memory:  []string{"去了爬山"},
	}
	text := out.Render()

	assert.Contains(t, text, "角色")
	assert.Contains(t, text, "相关记忆:\n- 去了爬山")
	assert.NotContains(t, text, "工具结果")
}
