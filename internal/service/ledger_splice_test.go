package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clarity-app/clarity/internal/model"
)

func makeEntries(cardIDs ...string) []model.StreamCard {
	entries := make([]model.StreamCard, 0, len(cardIDs))
	for i, id := range cardIDs {
		entries = append(entries, model.StreamCard{
			StreamID: "stream-1",
			CardID:   id,
			Position: i,
			AddedAt:  int64(1000 + i),
		})
	}
	return entries
}

func cardOrder(entries []model.StreamCard) []string {
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		order = append(order, e.CardID)
	}
	return order
}

func requireContiguous(t *testing.T, entries []model.StreamCard) {
	t.Helper()
	for i, e := range entries {
		require.Equal(t, i, e.Position)
	}
}

func TestSpliceInsert_Middle(t *testing.T) {
	entries := makeEntries("a", "b", "c")
	updated := spliceInsert(entries, model.StreamCard{CardID: "x"}, 1)
	require.Equal(t, []string{"a", "x", "b", "c"}, cardOrder(updated))
	requireContiguous(t, updated)
}

func TestSpliceInsert_ClampsOutOfRange(t *testing.T) {
	entries := makeEntries("a", "b")
	tail := spliceInsert(entries, model.StreamCard{CardID: "x"}, 99)
	require.Equal(t, []string{"a", "b", "x"}, cardOrder(tail))
	requireContiguous(t, tail)

	head := spliceInsert(makeEntries("a", "b"), model.StreamCard{CardID: "y"}, -5)
	require.Equal(t, []string{"y", "a", "b"}, cardOrder(head))
	requireContiguous(t, head)
}

func TestSpliceInsert_EmptyStream(t *testing.T) {
	updated := spliceInsert(nil, model.StreamCard{CardID: "x"}, 0)
	require.Equal(t, []string{"x"}, cardOrder(updated))
	requireContiguous(t, updated)
}

func TestSpliceRemove_ClosesGap(t *testing.T) {
	entries := makeEntries("a", "b", "c", "d")
	updated := spliceRemove(entries, "b")
	require.Equal(t, []string{"a", "c", "d"}, cardOrder(updated))
	requireContiguous(t, updated)
}

func TestSpliceRemove_MissingCardIsNoop(t *testing.T) {
	entries := makeEntries("a", "b")
	updated := spliceRemove(entries, "zz")
	require.Equal(t, []string{"a", "b"}, cardOrder(updated))
	requireContiguous(t, updated)
}

func TestSpliceInsertThenRemove_RoundTrips(t *testing.T) {
	original := makeEntries("a", "b", "c", "d")
	inserted := spliceInsert(original, model.StreamCard{CardID: "x"}, 2)
	restored := spliceRemove(inserted, "x")
	require.Equal(t, []string{"a", "b", "c", "d"}, cardOrder(restored))
	requireContiguous(t, restored)
}

func TestSpliceMove_Reorders(t *testing.T) {
	// d to the front, then a to the back.
	entries := makeEntries("a", "b", "c", "d")
	updated := spliceMove(entries, "d", 0)
	require.Equal(t, []string{"d", "a", "b", "c"}, cardOrder(updated))
	requireContiguous(t, updated)

	updated = spliceMove(updated, "a", 3)
	require.Equal(t, []string{"d", "b", "c", "a"}, cardOrder(updated))
	requireContiguous(t, updated)
}

func TestSpliceMove_SameSlotIsNoop(t *testing.T) {
	entries := makeEntries("a", "b", "c")
	updated := spliceMove(entries, "b", 1)
	require.Equal(t, []string{"a", "b", "c"}, cardOrder(updated))
	requireContiguous(t, updated)
}

func TestSpliceMove_ClampsOutOfRange(t *testing.T) {
	entries := makeEntries("a", "b", "c")
	updated := spliceMove(entries, "a", 42)
	require.Equal(t, []string{"b", "c", "a"}, cardOrder(updated))
	requireContiguous(t, updated)
}

func TestRenumber_RepairsDriftedPositions(t *testing.T) {
	entries := makeEntries("a", "b", "c")
	entries[0].Position = 3
	entries[1].Position = 7
	entries[2].Position = 9
	updated := renumber(entries)
	require.Equal(t, []string{"a", "b", "c"}, cardOrder(updated))
	requireContiguous(t, updated)
}

func TestSplice_EverySequenceKeepsContiguity(t *testing.T) {
	entries := makeEntries("a", "b", "c", "d", "e")
	entries = spliceMove(entries, "e", 0)
	entries = spliceRemove(entries, "c")
	entries = spliceInsert(entries, model.StreamCard{CardID: "f"}, 2)
	entries = spliceMove(entries, "a", 99)
	entries = spliceRemove(entries, "e")
	requireContiguous(t, entries)
	require.Len(t, entries, 4)
}
