package position

import (
	"time"

	"github.com/PettyFoot/stonks-two-sub010/internal/types"
	"github.com/shopspring/decimal"
)

// State of a tracked position.
type State int

const (
	StateFlat State = iota
	StateLong
	StateShort
)

func (s State) String() string {
	switch s {
	case StateLong:
		return types.SideLong
	case StateShort:
		return types.SideShort
	default:
		return "FLAT"
	}
}

// Lot is a quantity slice of an order consumed into a trade instance. For most
// orders the lot covers the full executed quantity; an order that flips a
// position is split into two lots belonging to different instances.
type Lot struct {
	Order    types.Order
	Quantity decimal.Decimal
}

// Instance is one round-trip trade under construction: the ordered entry and
// exit consumptions of a single (user, symbol, accountKey) position from flat
// back to flat. ClosedAt is nil while the position is still open.
type Instance struct {
	UserID     string
	Symbol     string
	AccountKey string
	Side       string // LONG or SHORT
	Entries    []Lot
	Exits      []Lot
	OpenedAt   time.Time
	ClosedAt   *time.Time
}

// Closed reports whether the instance was finalized by a flat transition.
func (i *Instance) Closed() bool {
	return i.ClosedAt != nil
}

// Tracker is the per (user, symbol, accountKey) state machine. It is built
// fresh for every rebuild and holds no state beyond the current unfinalized
// instance, so concurrent rebuilds of different groups never share anything.
type Tracker struct {
	userID     string
	symbol     string
	accountKey string

	state    State
	quantity decimal.Decimal // signed, positive while long
	current  *Instance
}

// NewTracker creates a tracker starting from a flat position.
func NewTracker(userID, symbol, accountKey string) *Tracker {
	return &Tracker{
		userID:     userID,
		symbol:     symbol,
		accountKey: accountKey,
		state:      StateFlat,
		quantity:   decimal.Zero,
	}
}

// State returns the current position state.
func (t *Tracker) State() State {
	return t.state
}

// Apply consumes one order, in chronological order, and advances the state
// machine. It returns a finalized instance when the order brings the position
// back to flat, including the closing half of a flip; otherwise nil.
func (t *Tracker) Apply(order types.Order) *Instance {
	qty := decimal.NewFromFloat(order.Quantity)
	orderDir := StateLong
	if order.Side == types.SideSell {
		orderDir = StateShort
	}

	if t.state == StateFlat {
		t.open(order, qty, orderDir)
		return nil
	}

	if orderDir == t.state {
		// Scale-in: same direction while a position is open.
		t.current.Entries = append(t.current.Entries, Lot{Order: order, Quantity: qty})
		t.quantity = t.quantity.Add(t.signed(qty, orderDir))
		return nil
	}

	open := t.quantity.Abs()
	switch {
	case qty.Equal(open):
		// Exact offset closes the instance.
		t.current.Exits = append(t.current.Exits, Lot{Order: order, Quantity: qty})
		return t.finalize(order.ExecutedAt)

	case qty.LessThan(open):
		// Partial exit: position shrinks, direction unchanged.
		t.current.Exits = append(t.current.Exits, Lot{Order: order, Quantity: qty})
		t.quantity = t.quantity.Add(t.signed(qty, orderDir))
		return nil

	default:
		// Flip: the offsetting portion closes the current instance, the
		// remainder opens a new one in the opposite direction.
		t.current.Exits = append(t.current.Exits, Lot{Order: order, Quantity: open})
		closed := t.finalize(order.ExecutedAt)
		t.open(order, qty.Sub(open), orderDir)
		return closed
	}
}

// Flush returns the still-open instance at end of stream, if any, and resets
// the tracker to flat.
func (t *Tracker) Flush() *Instance {
	if t.state == StateFlat {
		return nil
	}
	inst := t.current
	t.reset()
	return inst
}

func (t *Tracker) open(order types.Order, qty decimal.Decimal, dir State) {
	t.state = dir
	t.quantity = t.signed(qty, dir)
	t.current = &Instance{
		UserID:     t.userID,
		Symbol:     t.symbol,
		AccountKey: t.accountKey,
		Side:       dir.String(),
		Entries:    []Lot{{Order: order, Quantity: qty}},
		OpenedAt:   order.ExecutedAt,
	}
}

func (t *Tracker) finalize(closedAt time.Time) *Instance {
	inst := t.current
	ts := closedAt
	inst.ClosedAt = &ts
	t.reset()
	return inst
}

func (t *Tracker) reset() {
	t.state = StateFlat
	t.quantity = decimal.Zero
	t.current = nil
}

func (t *Tracker) signed(qty decimal.Decimal, dir State) decimal.Decimal {
	if dir == StateShort {
		return qty.Neg()
	}
	return qty
}
