package service

import "github.com/clarity-app/clarity/internal/model"

// Pure reordering helpers for the position ledger. Each takes the current
// entries in position order and returns the new ordering; renumber then
// assigns the contiguous positions 0..N-1. Keeping these free of I/O lets
// every reordering rule be tested without a database.

func clampIndex(idx, length int) int {
	if idx < 0 {
		return 0
	}
	if idx > length {
		return length
	}
	return idx
}

// spliceInsert places entry at idx, shifting later entries down.
func spliceInsert(entries []model.StreamCard, entry model.StreamCard, idx int) []model.StreamCard {
	idx = clampIndex(idx, len(entries))
	out := make([]model.StreamCard, 0, len(entries)+1)
	out = append(out, entries[:idx]...)
	out = append(out, entry)
	out = append(out, entries[idx:]...)
	return renumber(out)
}

// spliceRemove drops the entry for cardID; positions above it close the gap.
func spliceRemove(entries []model.StreamCard, cardID string) []model.StreamCard {
	out := make([]model.StreamCard, 0, len(entries))
	for _, e := range entries {
		if e.CardID == cardID {
			continue
		}
		out = append(out, e)
	}
	return renumber(out)
}

// spliceMove relocates cardID to idx. The target index is interpreted
// against the list after removal, matching how a drag-and-drop reorder lands.
func spliceMove(entries []model.StreamCard, cardID string, idx int) []model.StreamCard {
	var moved *model.StreamCard
	rest := make([]model.StreamCard, 0, len(entries))
	for i := range entries {
		if entries[i].CardID == cardID {
			e := entries[i]
			moved = &e
			continue
		}
		rest = append(rest, entries[i])
	}
	if moved == nil {
		return renumber(entries)
	}
	return spliceInsert(rest, *moved, idx)
}

// renumber rewrites positions to 0..N-1 in slice order.
func renumber(entries []model.StreamCard) []model.StreamCard {
	for i := range entries {
		entries[i].Position = i
	}
	return entries
}
