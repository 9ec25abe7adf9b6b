package account

import (
	"testing"

	"github.com/astralship/energybot/internal/extract"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestBuildMergesRepeatedCategoryAdditively(t *testing.T) {
	draft := Build([]extract.Token{{Quantity: dec(t, "10"), Category: "food"}}, nil, nil)
	draft = Build([]extract.Token{{Quantity: dec(t, "5"), Category: "food"}}, nil, draft)

	require.Len(t, draft.Entries, 1)
	assert.Equal(t, "food", draft.Entries[0].Category)
	assert.True(t, draft.Entries[0].Quantity.Equal(dec(t, "15")))
}

func TestBuildReplacesOnCorrection(t *testing.T) {
	draft := Build([]extract.Token{{Quantity: dec(t, "10"), Category: "food"}}, nil, nil)
	draft = Build([]extract.Token{{Quantity: dec(t, "5"), Category: "food", Replace: true}}, nil, draft)

	require.Len(t, draft.Entries, 1)
	assert.True(t, draft.Entries[0].Quantity.Equal(dec(t, "5")))
}

func TestBuildPreservesFirstMentionOrder(t *testing.T) {
	tokens := []extract.Token{
		{Quantity: dec(t, "10"), Category: "morale"},
		{Quantity: dec(t, "20"), Category: "medical"},
		{Quantity: dec(t, "5"), Category: "morale"},
	}
	draft := Build(tokens, nil, nil)

	require.Len(t, draft.Entries, 2)
	assert.Equal(t, "morale", draft.Entries[0].Category)
	assert.Equal(t, "medical", draft.Entries[1].Category)
	assert.True(t, draft.Entries[0].Quantity.Equal(dec(t, "15")))
}

func TestBuildDeclaredTotalOverride(t *testing.T) {
	first := dec(t, "80")
	second := dec(t, "100")

	draft := Build([]extract.Token{{Quantity: dec(t, "40"), Category: "medical"}}, &first, nil)
	require.NotNil(t, draft.DeclaredTotal)
	assert.True(t, draft.DeclaredTotal.Equal(first))

	draft = Build(nil, &second, draft)
	assert.True(t, draft.DeclaredTotal.Equal(second))

	// absent total keeps the previous declaration
	draft = Build([]extract.Token{{Quantity: dec(t, "60"), Category: "morale"}}, nil, draft)
	require.NotNil(t, draft.DeclaredTotal)
	assert.True(t, draft.DeclaredTotal.Equal(second))
}

func TestBuildDoesNotMutatePriorDraft(t *testing.T) {
	draft := Build([]extract.Token{{Quantity: dec(t, "10"), Category: "food"}}, nil, nil)
	_ = Build([]extract.Token{{Quantity: dec(t, "5"), Category: "food"}}, nil, draft)

	assert.True(t, draft.Entries[0].Quantity.Equal(dec(t, "10")))
}

func TestBuildIsDeterministic(t *testing.T) {
	tokens := []extract.Token{
		{Quantity: dec(t, "10"), Category: "food", Recipient: "galley"},
		{Quantity: dec(t, "20"), Category: "medical"},
	}
	total := dec(t, "30")

	a := Build(tokens, &total, nil)
	b := Build(tokens, &total, nil)
	assert.Equal(t, a, b)
}
