// Package ledger tracks the player's item economy: consumable charges, timed
// effects and one-shot permanent effects.
//
// The ledger never diffs. Every server payload rewrites all entries, and the
// only state that survives a reconcile is a permanent activation, which is
// one-way. A Ledger is not safe for concurrent use; its owner serializes access.
package ledger

import (
	"errors"
	"fmt"

	"github.com/jwebster45206/boss-rush/pkg/api"
)

var (
	ErrUnknownItem = errors.New("unknown item")
	ErrNotUsable   = errors.New("item has no charges")
	ErrPermanent   = errors.New("item effect is already permanently active")
	ErrPending     = errors.New("item activation already outstanding")
)

// Entry is the ledger state of one item kind.
type Entry struct {
	Charges        int  // Remaining activations
	RemainingTurns int  // Timed effect turns left, decremented server-side
	Permanent      bool // One-shot effect active for the rest of the session
}

// Passives are reward effects that are not activatable items.
type Passives struct {
	Shield      int // Damage reduction level
	AttackBonus int
	CritChance  int // Percent
}

// ItemView is a display-ready row for one item.
type ItemView struct {
	Item           api.ItemID
	Name           string
	Charges        int
	RemainingTurns int
	Permanent      bool
	Usable         bool
}

var names = map[api.ItemID]string{
	api.ItemNoodles:    "Organic Crispy Noodles",
	api.ItemAegis:      "Everbloom Aegis",
	api.ItemSpell:      "Gateway Of Living Grace",
	api.ItemEcoBlaster: "Eco Blaster",
}

// Name returns the display name of an item, or its id when unknown.
func Name(item api.ItemID) string {
	if n, ok := names[item]; ok {
		return n
	}
	return string(item)
}

// singleActivation items can only ever be activated once per session.
func singleActivation(item api.ItemID) bool {
	return item == api.ItemAegis
}

type Ledger struct {
	entries  map[api.ItemID]Entry
	passives Passives
	pending  api.ItemID
}

func New() *Ledger {
	return &Ledger{entries: make(map[api.ItemID]Entry, len(api.Items))}
}

// Clone returns an independent copy, including any outstanding activation.
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{
		entries:  make(map[api.ItemID]Entry, len(l.entries)),
		passives: l.passives,
		pending:  l.pending,
	}
	for k, v := range l.entries {
		c.entries[k] = v
	}
	return c
}

// Reconcile rewrites every tracked entry from the payload. A reconcile is the
// end of any outstanding activation.
func (l *Ledger) Reconcile(ps api.PlayerStats) {
	next := map[api.ItemID]Entry{
		api.ItemNoodles:    {Charges: nonNegative(ps.NoodlesCharges)},
		api.ItemAegis:      {Charges: nonNegative(ps.AegisCharges), Permanent: ps.AegisActive},
		api.ItemSpell:      {Charges: nonNegative(ps.SpellCharges), RemainingTurns: nonNegative(ps.ForceFieldTurns)},
		api.ItemEcoBlaster: {Charges: nonNegative(ps.EcoBlasterUses)},
	}

	for item, prev := range l.entries {
		if !prev.Permanent {
			continue
		}
		e := next[item]
		e.Permanent = true
		e.Charges = prev.Charges // frozen once permanent
		next[item] = e
	}

	l.entries = next
	l.passives = Passives{
		Shield:      nonNegative(ps.Shield),
		AttackBonus: nonNegative(ps.AttackBonus),
		CritChance:  nonNegative(ps.CriticalStrike),
	}
	l.pending = ""
}

func (l *Ledger) Entry(item api.ItemID) Entry {
	return l.entries[item]
}

func (l *Ledger) Passives() Passives {
	return l.passives
}

// IsUsable reports whether an activation of item may be submitted now.
func (l *Ledger) IsUsable(item api.ItemID) bool {
	return l.check(item) == nil
}

func (l *Ledger) check(item api.ItemID) error {
	if _, ok := names[item]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownItem, item)
	}
	if l.pending != "" {
		return ErrPending
	}
	e := l.entries[item]
	if e.Permanent && singleActivation(item) {
		return ErrPermanent
	}
	if e.Charges <= 0 {
		return ErrNotUsable
	}
	return nil
}

// Begin marks item as being activated. No item is usable again until the
// next Reconcile. A failed activation is undone by restoring an earlier Clone.
func (l *Ledger) Begin(item api.ItemID) error {
	if err := l.check(item); err != nil {
		return err
	}
	l.pending = item
	return nil
}

// Views lists every item in display order.
func (l *Ledger) Views() []ItemView {
	views := make([]ItemView, 0, len(api.Items))
	for _, item := range api.Items {
		e := l.entries[item]
		views = append(views, ItemView{
			Item:           item,
			Name:           Name(item),
			Charges:        e.Charges,
			RemainingTurns: e.RemainingTurns,
			Permanent:      e.Permanent,
			Usable:         l.IsUsable(item),
		})
	}
	return views
}

func nonNegative(v int) int {
	return max(v, 0)
}
