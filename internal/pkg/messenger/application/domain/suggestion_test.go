package messenger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSuggestionLastWriteWins(t *testing.T) {
	slot := NewSuggestionSlot(RoleArtisan)

	slot.Replace("first draft")
	slot.Replace("Thanks for your order!")

	text, ok := slot.Value()
	require.True(t, ok)
	require.Equal(t, "Thanks for your order!", text)

	// Still exactly one suggestion; Take drains it.
	taken, ok := slot.Take()
	require.True(t, ok)
	require.Equal(t, "Thanks for your order!", taken)

	_, ok = slot.Value()
	require.False(t, ok)
}

func TestSuggestionGatedForNonAssistiveRole(t *testing.T) {
	slot := NewSuggestionSlot(RoleBuyer)

	slot.Replace("should never surface")

	_, ok := slot.Value()
	require.False(t, ok)
	_, ok = slot.Take()
	require.False(t, ok)
}

func TestSuggestionClear(t *testing.T) {
	slot := NewSuggestionSlot(RoleArtisan)
	slot.Replace("pending")
	slot.Clear()

	_, ok := slot.Value()
	require.False(t, ok)
}

func TestNewOptimisticMessageValidation(t *testing.T) {
	_, err := NewOptimisticMessage("conv-1", "u1", "   ", ts(0))
	require.ErrorIs(t, err, ErrEmptyMessage)

	_, err = NewOptimisticMessage("", "u1", "hello", ts(0))
	require.ErrorIs(t, err, ErrMissingSession)

	m, err := NewOptimisticMessage("conv-1", "u1", "  hello  ", ts(0))
	require.NoError(t, err)
	require.Equal(t, "hello", m.Text)
	require.NotEmpty(t, m.LocalID)
	require.Empty(t, m.ServerID)
	require.Equal(t, m.LocalID, m.ID())
}
