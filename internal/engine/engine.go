// Package engine owns the cart lifecycle: it applies reversible commands to
// an in-memory cart, re-validates against the latest stock snapshot on every
// mutation, and performs the atomic, permission-gated finalize against the
// persistence endpoint.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"checkout/internal/core/command"
	"checkout/internal/core/domain"
	"checkout/internal/core/errs"
	"checkout/internal/infra/catalog"
	"checkout/internal/infra/storage"
	"checkout/internal/metrics"
)

// State is the transaction lifecycle state.
type State string

const (
	StateEmpty      State = "empty"
	StateBuilding   State = "building"
	StateValidating State = "validating"
	StateFinalizing State = "finalizing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// DefaultTaxRate is the flat tax multiplier applied when none is configured.
var DefaultTaxRate = decimal.NewFromFloat(0.19)

// ActionFinalizeSale is the permission checked before any finalize traffic.
const ActionFinalizeSale = "sale:create"

// SalePoster posts a finalize payload to the persistence endpoint.
type SalePoster interface {
	FinalizeSale(ctx context.Context, req domain.FinalizeRequest) (domain.SaleReceipt, error)
}

// PermissionGate answers whether the current operator may perform an action.
// Evaluated before finalize; a denial never reaches the network.
type PermissionGate interface {
	CanFinalize(action string) bool
}

// Snapshot is what the engine emits to its UI collaborator on every
// transition. Amounts are rounded for display here and nowhere earlier.
type Snapshot struct {
	State     State                 `json:"state"`
	Cart      domain.Cart           `json:"cart"`
	Subtotal  decimal.Decimal       `json:"subtotal"`
	Tax       decimal.Decimal       `json:"tax"`
	Total     decimal.Decimal       `json:"total"`
	LastError *errs.ClassifiedError `json:"last_error,omitempty"`
}

// ValidationResult reports the outcome of a cart validation pass.
type ValidationResult struct {
	IsValid bool
	Errors  []*errs.ClassifiedError
}

// Config wires the engine's collaborators. Catalog and Poster are required;
// Gate defaults to deny-all, Journal and OnChange are optional. TaxRate nil
// selects DefaultTaxRate; an explicit zero configures a tax-free till.
type Config struct {
	Catalog  catalog.Provider
	Poster   SalePoster
	Gate     PermissionGate
	Journal  storage.SaleRepository
	TaxRate  *decimal.Decimal
	OnChange func(Snapshot)
}

// Engine is the per-session transaction state machine. Mutations are
// serialized by the caller; the internal mutex exists only to guard the
// at-most-one-in-flight finalize invariant against a concurrent second call.
type Engine struct {
	mu       sync.Mutex
	state    State
	cart     domain.Cart
	stack    *command.Stack
	snapshot domain.StockSnapshot
	lastErr  *errs.ClassifiedError
	lastSale *domain.Sale
	inFlight bool
	attempt  uint64

	catalog  catalog.Provider
	poster   SalePoster
	gate     PermissionGate
	journal  storage.SaleRepository
	taxRate  decimal.Decimal
	onChange func(Snapshot)
	log      *slog.Logger
}

// New creates an engine with an empty cart.
func New(cfg Config) *Engine {
	rate := DefaultTaxRate
	if cfg.TaxRate != nil {
		rate = *cfg.TaxRate
	}

	return &Engine{
		state:    StateEmpty,
		stack:    command.NewStack(),
		snapshot: domain.StockSnapshot{},
		catalog:  cfg.Catalog,
		poster:   cfg.Poster,
		gate:     cfg.Gate,
		journal:  cfg.Journal,
		taxRate:  rate,
		onChange: cfg.OnChange,
		log:      slog.Default(),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Cart returns a copy of the current cart.
func (e *Engine) Cart() domain.Cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Clone()
}

// LastSale returns the sale produced by the last successful finalize, if any.
func (e *Engine) LastSale() *domain.Sale {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSale
}

// Snapshot returns the current UI projection.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buildSnapshot()
}

// AuditTrail returns the describe strings of the undo history.
func (e *Engine) AuditTrail() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stack.AuditTrail()
}

// buildSnapshot assembles the emitted projection. Caller holds e.mu.
func (e *Engine) buildSnapshot() Snapshot {
	subtotal := e.cart.Subtotal()
	tax := subtotal.Mul(e.taxRate)
	return Snapshot{
		State:     e.state,
		Cart:      e.cart.Clone(),
		Subtotal:  subtotal.Round(2),
		Tax:       tax.Round(2),
		Total:     subtotal.Add(tax).Round(2),
		LastError: e.lastErr,
	}
}

// emit pushes the current snapshot to the UI collaborator. Caller holds
// e.mu; the callback must not re-enter the engine.
func (e *Engine) emit() {
	if e.onChange != nil {
		e.onChange(e.buildSnapshot())
	}
}

// refreshSnapshot pulls the latest stock quantities. Caller holds e.mu.
func (e *Engine) refreshSnapshot(ctx context.Context) error {
	items, err := e.catalog.GetStockSnapshot(ctx)
	if err != nil {
		return errs.From(err)
	}
	e.snapshot = domain.SnapshotFrom(items)
	return nil
}

// mutable reports whether cart mutations are currently allowed. A failed
// finalize keeps the cart editable; terminal and in-flight states do not.
func (e *Engine) mutable() bool {
	switch e.state {
	case StateEmpty, StateBuilding, StateValidating, StateFailed:
		return true
	}
	return false
}

// AddToCart adds qty units of a stock item, merging into an existing line
// for the same item. The merged quantity is checked against the freshly
// refreshed stock snapshot; an over-quantity add is rejected whole and the
// cart is left unchanged.
func (e *Engine) AddToCart(ctx context.Context, item domain.StockItem, qty int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.mutable() {
		return e.fail(errs.FromConflict("transaction"))
	}
	if qty <= 0 {
		return e.fail(errs.FromValidation(map[string]string{"quantity": "must be positive"}))
	}

	if err := e.refreshSnapshot(ctx); err != nil {
		return e.fail(errs.From(err))
	}

	available := e.snapshot.Available(item.ID)
	requested := qty
	if i := e.cart.Find(item.ID); i >= 0 {
		requested += e.cart.Lines[i].Quantity
	}
	if requested > available {
		return e.fail(errs.FromStockShortfall([]errs.Shortfall{{
			ItemID:    item.ID,
			Name:      item.Name,
			Requested: requested,
			Available: available,
		}}))
	}

	line := domain.CartLine{
		StockItemID: item.ID,
		Name:        item.Name,
		Code:        item.Code,
		UnitPrice:   item.UnitPrice,
		Quantity:    qty,
	}
	next, err := e.stack.Apply(command.AddItem(line), e.cart)
	if err != nil {
		return e.fail(errs.FromUnknown(err))
	}

	e.cart = next
	e.state = StateBuilding
	e.lastErr = nil
	e.emit()
	return nil
}

// UpdateQuantity sets a line to a new quantity. Zero or negative removes the
// line. A quantity above the available stock is rejected, not clamped, so
// the operator is informed.
func (e *Engine) UpdateQuantity(ctx context.Context, stockItemID string, newQty int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.mutable() {
		return e.fail(errs.FromConflict("transaction"))
	}

	i := e.cart.Find(stockItemID)
	if i < 0 {
		return e.fail(errs.FromValidation(map[string]string{"stock_item_id": "not in cart"}))
	}

	var cmd command.Command
	if newQty <= 0 {
		cmd = command.RemoveItem(stockItemID)
	} else {
		if err := e.refreshSnapshot(ctx); err != nil {
			return e.fail(errs.From(err))
		}
		if available := e.snapshot.Available(stockItemID); newQty > available {
			return e.fail(errs.FromStockShortfall([]errs.Shortfall{{
				ItemID:    stockItemID,
				Name:      e.cart.Lines[i].Name,
				Requested: newQty,
				Available: available,
			}}))
		}
		cmd = command.UpdateQuantity(stockItemID, newQty)
	}

	next, err := e.stack.Apply(cmd, e.cart)
	if err != nil {
		return e.fail(errs.FromUnknown(err))
	}

	e.cart = next
	e.state = StateBuilding
	e.lastErr = nil
	e.emit()
	return nil
}

// UndoLast reverses the most recent cart command.
func (e *Engine) UndoLast() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.mutable() {
		return e.fail(errs.FromConflict("transaction"))
	}

	restored, cmd, err := e.stack.UndoLast(e.cart)
	if err != nil {
		return e.fail(errs.From(err))
	}

	e.log.Debug("undid command", "command", cmd.Describe())
	e.cart = restored
	if e.cart.IsEmpty() && e.stack.Len() == 0 {
		e.state = StateEmpty
	} else {
		e.state = StateBuilding
	}
	e.lastErr = nil
	e.emit()
	return nil
}

// ValidateCart re-checks every line against the current stock snapshot,
// which may have changed since the lines were added. An empty cart is never
// valid.
func (e *Engine) ValidateCart(ctx context.Context) (ValidationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validateLocked(ctx)
}

func (e *Engine) validateLocked(ctx context.Context) (ValidationResult, error) {
	if e.state == StateBuilding || e.state == StateValidating || e.state == StateFailed {
		e.state = StateValidating
	}

	if e.cart.IsEmpty() {
		return ValidationResult{Errors: []*errs.ClassifiedError{errs.EmptyCart()}}, nil
	}

	if err := e.refreshSnapshot(ctx); err != nil {
		return ValidationResult{}, errs.From(err)
	}

	var verrs []*errs.ClassifiedError
	for _, l := range e.cart.Lines {
		if available := e.snapshot.Available(l.StockItemID); l.Quantity > available {
			verrs = append(verrs, errs.FromStockShortfall([]errs.Shortfall{{
				ItemID:    l.StockItemID,
				Name:      l.Name,
				Requested: l.Quantity,
				Available: available,
			}}))
		}
	}

	return ValidationResult{IsValid: len(verrs) == 0, Errors: verrs}, nil
}

// FinalizeSale converts a valid cart into a persisted sale. At most one
// finalize may be in flight per cart; a second call fails immediately with a
// conflict classification. On failure the cart is preserved and finalize may
// be retried; on external cancellation the state returns to building.
func (e *Engine) FinalizeSale(ctx context.Context, method domain.PaymentMethod) (*domain.Sale, error) {
	e.mu.Lock()

	if e.inFlight {
		e.mu.Unlock()
		metrics.FinalizeAttempts.WithLabelValues("conflict").Inc()
		return nil, errs.FromConflict("finalize")
	}
	if e.state == StateCompleted || e.state == StateCancelled {
		e.mu.Unlock()
		metrics.FinalizeAttempts.WithLabelValues("rejected").Inc()
		return nil, errs.EmptyCart()
	}
	if !method.Valid() {
		err := e.fail(errs.FromValidation(map[string]string{"payment_method": "unknown payment method"}))
		e.mu.Unlock()
		metrics.FinalizeAttempts.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if e.gate == nil || !e.gate.CanFinalize(ActionFinalizeSale) {
		err := e.fail(errs.FromPermissionDenial(ActionFinalizeSale))
		e.mu.Unlock()
		metrics.FinalizeAttempts.WithLabelValues("rejected").Inc()
		return nil, err
	}

	result, err := e.validateLocked(ctx)
	if err != nil {
		e.mu.Unlock()
		metrics.FinalizeAttempts.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if !result.IsValid {
		verr := result.Errors[0]
		e.lastErr = verr
		e.emit()
		e.mu.Unlock()
		metrics.FinalizeAttempts.WithLabelValues("rejected").Inc()
		return nil, verr
	}

	subtotal := e.cart.Subtotal()
	tax := subtotal.Mul(e.taxRate)
	total := subtotal.Add(tax)

	e.attempt++
	req := domain.FinalizeRequest{
		Lines:          e.cart.Clone().Lines,
		Subtotal:       subtotal.Round(2),
		Tax:            tax.Round(2),
		Total:          total.Round(2),
		PaymentMethod:  method,
		IdempotencyKey: domain.IdempotencyKey(e.cart.Lines, e.attempt),
	}

	e.inFlight = true
	e.state = StateFinalizing
	e.lastErr = nil
	e.emit()
	e.mu.Unlock()

	// Network round trip happens outside the lock so a concurrent second
	// finalize can fail fast with a conflict instead of queueing.
	receipt, postErr := e.poster.FinalizeSale(ctx, req)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight = false

	if postErr != nil {
		ce := errs.From(postErr)
		if ce.Kind == errs.KindNetwork && ce.NetworkType == errs.NetworkAbort {
			// Cancelled by the operator: cart untouched, back to building.
			e.state = StateBuilding
			metrics.FinalizeAttempts.WithLabelValues("aborted").Inc()
		} else {
			e.state = StateFailed
			metrics.FinalizeAttempts.WithLabelValues("failed").Inc()
		}
		e.lastErr = ce
		e.emit()
		return nil, ce
	}

	sale := &domain.Sale{
		ID:            receipt.SaleID,
		Lines:         req.Lines,
		Subtotal:      req.Subtotal,
		Tax:           req.Tax,
		Total:         req.Total,
		PaymentMethod: method,
		CreatedAt:     receipt.CreatedAt,
	}
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now()
	}

	e.cart = domain.Cart{}
	e.stack.Clear()
	e.state = StateCompleted
	e.lastErr = nil
	e.lastSale = sale
	e.attempt = 0

	metrics.FinalizeAttempts.WithLabelValues("completed").Inc()
	metrics.SaleTotal.Observe(sale.Total.InexactFloat64())
	e.journalSale(sale)
	e.log.Info("sale completed", "sale_id", sale.ID, "total", sale.Total, "lines", len(sale.Lines))

	e.emit()
	return sale, nil
}

// journalSale appends the sale to the local audit journal. Best-effort: the
// remote endpoint is authoritative, so a journal failure never fails the
// sale. Caller holds e.mu.
func (e *Engine) journalSale(sale *domain.Sale) {
	if e.journal == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.journal.Save(ctx, sale); err != nil {
		metrics.JournalWriteFailures.Inc()
		e.log.Warn("failed to journal sale", "sale_id", sale.ID, "error", err)
	}
}

// CancelSale clears the cart and history without any persistence call.
// A finalize in flight cannot be cancelled this way; use the context passed
// to FinalizeSale.
func (e *Engine) CancelSale() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inFlight {
		return e.fail(errs.FromConflict("finalize"))
	}

	e.cart = domain.Cart{}
	e.stack.Clear()
	e.state = StateCancelled
	e.lastErr = nil
	e.emit()
	return nil
}

// fail records the classification, surfaces it through the snapshot, and
// returns it. Caller holds e.mu. State is deliberately left alone: a
// rejected mutation is not a transition.
func (e *Engine) fail(ce *errs.ClassifiedError) error {
	e.lastErr = ce
	metrics.ClassifiedErrors.WithLabelValues(string(ce.Kind)).Inc()
	e.log.Warn("operation rejected", "error", ce)
	e.emit()
	return ce
}
