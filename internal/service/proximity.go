package service

import (
	"bytes"
	"math"

	"github.com/google/uuid"

	"office-service/internal/model"
)

// pairKey is the canonical unordered pair of user IDs. Canonical ordering
// makes symmetry and no-duplicates structural rather than enforced.
type pairKey struct {
	a, b uuid.UUID
}

func newPairKey(x, y uuid.UUID) pairKey {
	if bytes.Compare(x[:], y[:]) > 0 {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

// Pair is one symmetric nearby relation between two users.
type Pair struct {
	A uuid.UUID
	B uuid.UUID
}

// ProximityDelta lists the pairs that crossed the threshold on one update.
type ProximityDelta struct {
	Entered []Pair
	Exited  []Pair
}

// ProximityEngine maintains the edge-triggered nearby set of one office
// room. It is not safe for concurrent use; the owning room's lock guards
// every call.
type ProximityEngine struct {
	threshold  float64
	hysteresis float64
	pairs      map[pairKey]struct{}
}

func NewProximityEngine(threshold, hysteresis float64) *ProximityEngine {
	return &ProximityEngine{
		threshold:  threshold,
		hysteresis: hysteresis,
		pairs:      make(map[pairKey]struct{}),
	}
}

// distance is the Chebyshev metric, max(|dx|, |dy|): interaction zones are
// square on the office grid, so a user at (40,40) is within a threshold of
// 50 even though the straight-line distance is larger.
func distance(a, b model.Position) float64 {
	return math.Max(math.Abs(a.X-b.X), math.Abs(a.Y-b.Y))
}

// OnPositionChanged recomputes the moved user's distance to every other
// player in the room. O(n) per update; office rooms hold tens of players,
// not thousands.
func (e *ProximityEngine) OnPositionChanged(userID uuid.UUID, players map[uuid.UUID]*model.PlayerState) ProximityDelta {
	moved, ok := players[userID]
	if !ok {
		return ProximityDelta{}
	}

	var delta ProximityDelta
	for otherID, other := range players {
		if otherID == userID {
			continue
		}
		key := newPairKey(userID, otherID)
		_, near := e.pairs[key]
		d := distance(moved.Position, other.Position)

		switch {
		case !near && d <= e.threshold:
			e.pairs[key] = struct{}{}
			delta.Entered = append(delta.Entered, Pair{A: userID, B: otherID})
		case near && d > e.threshold+e.hysteresis:
			delete(e.pairs, key)
			delta.Exited = append(delta.Exited, Pair{A: userID, B: otherID})
		}
	}
	return delta
}

// RemoveUser drops every pair involving the user and returns them as exits,
// exactly one per former pair.
func (e *ProximityEngine) RemoveUser(userID uuid.UUID) []Pair {
	var exited []Pair
	for key := range e.pairs {
		if key.a == userID || key.b == userID {
			other := key.a
			if other == userID {
				other = key.b
			}
			delete(e.pairs, key)
			exited = append(exited, Pair{A: userID, B: other})
		}
	}
	return exited
}

// Nearby returns the users currently inside the user's nearby set.
func (e *ProximityEngine) Nearby(userID uuid.UUID) []uuid.UUID {
	var nearby []uuid.UUID
	for key := range e.pairs {
		switch userID {
		case key.a:
			nearby = append(nearby, key.b)
		case key.b:
			nearby = append(nearby, key.a)
		}
	}
	return nearby
}

// PairCount reports the size of the nearby set, for metrics.
func (e *ProximityEngine) PairCount() int {
	return len(e.pairs)
}
