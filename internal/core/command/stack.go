package command

import (
	"checkout/internal/core/domain"
	"checkout/internal/core/errs"
)

// Stack owns the linear undo history of a cart. It never inspects cart
// contents beyond applying and reversing commands; the engine owns the cart
// itself.
type Stack struct {
	history []applied
}

// NewStack returns an empty history.
func NewStack() *Stack {
	return &Stack{}
}

// Apply executes the command against the cart, records it with its captured
// inverse, and returns the new cart. On error nothing is recorded and the
// input cart is returned unchanged.
func (s *Stack) Apply(cmd Command, cart domain.Cart) (domain.Cart, error) {
	next, rec, err := apply(cmd, cart)
	if err != nil {
		return cart, err
	}
	s.history = append(s.history, rec)
	return next, nil
}

// UndoLast pops the most recent command and applies its inverse, returning
// the restored cart and the command that was undone. Fails with an
// EmptyHistory classification if nothing was recorded.
func (s *Stack) UndoLast(cart domain.Cart) (domain.Cart, Command, error) {
	if len(s.history) == 0 {
		return cart, Command{}, errs.EmptyHistory()
	}

	rec := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	return invert(rec, cart), rec.cmd, nil
}

// Len returns the number of undoable commands.
func (s *Stack) Len() int {
	return len(s.history)
}

// Clear drops the whole history. Called on finalize success and on cancel;
// a persisted sale is not undoable through this mechanism.
func (s *Stack) Clear() {
	s.history = nil
}

// AuditTrail returns the Describe() strings of the recorded commands, oldest
// first. Logging only.
func (s *Stack) AuditTrail() []string {
	out := make([]string, len(s.history))
	for i, rec := range s.history {
		out[i] = rec.cmd.Describe()
	}
	return out
}
