package flow

import (
	"sort"

	"github.com/rahul/glide/internal/store"
)

// Renumber returns the moves that open a gap at insertAfter+1: every step
// numbered above insertAfter shifts up by one. Moves are ordered by
// descending number so that applying them in order never collides.
func Renumber(steps []store.Position, insertAfter int) []store.Renumbering {
	var moves []store.Renumbering
	for _, s := range steps {
		if s.StepNumber > insertAfter {
			moves = append(moves, store.Renumbering{
				ID:   s.ID,
				From: s.StepNumber,
				To:   s.StepNumber + 1,
			})
		}
	}
	sort.Slice(moves, func(i, j int) bool {
		return moves[i].From > moves[j].From
	})
	return moves
}

// invert undoes moves produced by Renumber, in an order that is itself
// collision-free.
func invert(moves []store.Renumbering) []store.Renumbering {
	out := make([]store.Renumbering, 0, len(moves))
	for i := len(moves) - 1; i >= 0; i-- {
		m := moves[i]
		out = append(out, store.Renumbering{ID: m.ID, From: m.To, To: m.From})
	}
	return out
}
