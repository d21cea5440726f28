package engine

import (
	"sync"

	"github.com/tidwall/btree"
)

// sideRules describes how one ladder is ordered and when a resting level on it
// can trade with an incoming limit from the opposite side.
type sideRules struct {
	side Side
	// desc walks highest price first.
	desc    bool
	crosses func(limit, resting uint32) bool
}

var (
	bidRules = sideRules{
		side:    SideBuy,
		desc:    true,
		crosses: func(limit, resting uint32) bool { return resting >= limit },
	}
	askRules = sideRules{
		side:    SideSell,
		crosses: func(limit, resting uint32) bool { return resting <= limit },
	}
)

// ladder is one side of a book. mu guards the level map, the queues inside
// the levels and the mutable state of every activated order resting here.
type ladder struct {
	mu     sync.Mutex
	rules  sideRules
	levels *btree.Map[uint32, *PriceLevel]
}

func newLadder(rules sideRules) *ladder {
	return &ladder{
		rules:  rules,
		levels: btree.NewMap[uint32, *PriceLevel](32),
	}
}

// insert appends o to the level at its price, creating the level on demand.
// Caller holds mu.
func (l *ladder) insert(o *Order) {
	lvl, ok := l.levels.Get(o.Price)
	if !ok {
		lvl = NewPriceLevel(o.Price)
		l.levels.Set(o.Price, lvl)
	}
	lvl.Push(o)
}

// pop drops the head of lvl and prunes the level once it is empty.
// Caller holds mu.
func (l *ladder) pop(lvl *PriceLevel) *Order {
	o := lvl.Pop()
	l.prune(lvl)
	return o
}

// evict takes o out of its level wherever it sits and reports whether it was
// there. Caller holds mu.
func (l *ladder) evict(o *Order) bool {
	lvl, ok := l.levels.Get(o.Price)
	if !ok || !lvl.Remove(o) {
		return false
	}
	l.prune(lvl)
	return true
}

func (l *ladder) prune(lvl *PriceLevel) {
	if lvl.Size() == 0 {
		l.levels.Delete(lvl.Price())
	}
}

// walk visits levels best price first until fn returns false. The map must
// not be modified from fn. Caller holds mu.
func (l *ladder) walk(fn func(*PriceLevel) bool) {
	iter := func(_ uint32, lvl *PriceLevel) bool { return fn(lvl) }
	if l.rules.desc {
		l.levels.Reverse(iter)
		return
	}
	l.levels.Scan(iter)
}

// firstVisible returns the best level that crosses in's limit and whose head
// arrived before in. Levels headed by a newer order are skipped: those orders
// match against in themselves once they run. Caller holds mu.
func (l *ladder) firstVisible(in *Order) *PriceLevel {
	var found *PriceLevel
	l.walk(func(lvl *PriceLevel) bool {
		if !l.rules.crosses(in.Price, lvl.Price()) {
			return false
		}
		head := lvl.Front()
		if head == nil || head.Timestamp() > in.Timestamp() {
			return true
		}
		found = lvl
		return false
	})
	return found
}

func (l *ladder) size() int { return l.levels.Len() }
