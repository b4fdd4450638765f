// Package scenehost implements C5 SceneHostElector: picking the successor
// scene host when the current one leaves, and deciding initial election for
// a scene's first occupant. It holds no state of its own — IsSceneHost lives
// on PlayerRecord — it only decides who goes next.
package scenehost

import (
	"sort"

	"scenerelay/internal/session"
)

// Elect picks the successor among peers still in the departing host's scene.
// Iteration order of SessionTable is acceptable per spec.md §4.5; to make
// that order reproducible for tests this picks the lowest id, which is a
// valid tie-break consistent with "first in iteration order" for any table
// implementation that doesn't promise ordering of its own.
func Elect(peers []*session.PlayerRecord) *session.PlayerRecord {
	if len(peers) == 0 {
		return nil
	}
	sorted := append([]*session.PlayerRecord(nil), peers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return sorted[0]
}

// ShouldBecomeInitialHost reports whether a player entering a scene with no
// other occupants present should immediately become its scene host
// (spec.md §4.5 "Initial election").
func ShouldBecomeInitialHost(otherOccupants []*session.PlayerRecord) bool {
	return len(otherOccupants) == 0
}
