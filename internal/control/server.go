package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"checkout/internal/core/domain"
	"checkout/internal/core/errs"
)

// Server exposes the dashboard's JSON API plus health and metrics.
type Server struct {
	dash   *Dashboard
	server *http.Server
}

// NewServer builds the HTTP surface for a dashboard.
func NewServer(dash *Dashboard, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		dash: dash,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /sessions", s.handleOpenSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleCloseSession)
	mux.HandleFunc("GET /sessions/{id}", s.withSession(s.handleSnapshot))
	mux.HandleFunc("POST /sessions/{id}/items", s.withSession(s.handleAddItem))
	mux.HandleFunc("PATCH /sessions/{id}/items/{itemID}", s.withSession(s.handleUpdateQuantity))
	mux.HandleFunc("POST /sessions/{id}/undo", s.withSession(s.handleUndo))
	mux.HandleFunc("POST /sessions/{id}/validate", s.withSession(s.handleValidate))
	mux.HandleFunc("POST /sessions/{id}/finalize", s.withSession(s.handleFinalize))
	mux.HandleFunc("POST /sessions/{id}/cancel", s.withSession(s.handleCancel))

	mux.HandleFunc("GET /sales", s.handleListSales)
	mux.HandleFunc("PUT /stock/{id}", s.handleSeedStock)

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// withSession resolves the session and forwards to the handler. The engine
// serializes its own operations, so handlers call it without a wrapper lock;
// holding one across a finalize would block snapshots and turn the immediate
// conflict rejection of a second finalize into queueing.
func (s *Server) withSession(next func(http.ResponseWriter, *http.Request, *session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.dash.getSession(r.PathValue("id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session"})
			return
		}
		next(w, r, sess)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	if s.dash.db != nil {
		if err := s.dash.db.Health(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]string{"status": status})
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	role := r.Header.Get("X-Operator-Role")
	if role == "" {
		writeError(w, errs.FromValidation(map[string]string{"X-Operator-Role": "header is required"}))
		return
	}

	id := s.dash.OpenSession(role)
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if !s.dash.CloseSession(r.PathValue("id")) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request, sess *session) {
	writeJSON(w, http.StatusOK, sess.engine.Snapshot())
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request, sess *session) {
	var req struct {
		ItemID   string `json:"item_id"`
		Quantity int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.FromValidation(map[string]string{"body": err.Error()}))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	item, err := s.lookupItem(r.Context(), req.ItemID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := sess.engine.AddToCart(r.Context(), item, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.engine.Snapshot())
}

func (s *Server) handleUpdateQuantity(w http.ResponseWriter, r *http.Request, sess *session) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.FromValidation(map[string]string{"body": err.Error()}))
		return
	}

	if err := sess.engine.UpdateQuantity(r.Context(), r.PathValue("itemID"), req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.engine.Snapshot())
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request, sess *session) {
	if err := sess.engine.UndoLast(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.engine.Snapshot())
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request, sess *session) {
	result, err := sess.engine.ValidateCart(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	out := struct {
		IsValid bool        `json:"is_valid"`
		Errors  []*uiError  `json:"errors"`
		Cart    domain.Cart `json:"cart"`
	}{IsValid: result.IsValid, Errors: make([]*uiError, 0, len(result.Errors)), Cart: sess.engine.Cart()}
	for _, ce := range result.Errors {
		out.Errors = append(out.Errors, toUIError(ce))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request, sess *session) {
	var req struct {
		PaymentMethod domain.PaymentMethod `json:"payment_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.FromValidation(map[string]string{"body": err.Error()}))
		return
	}

	sale, err := sess.engine.FinalizeSale(r.Context(), req.PaymentMethod)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, sess *session) {
	if err := sess.engine.CancelSale(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.engine.Snapshot())
}

func (s *Server) handleListSales(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	sales, err := s.dash.journal.ListRecent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

// handleSeedStock upserts an item into the local catalog. Only available
// when no remote catalog is configured.
func (s *Server) handleSeedStock(w http.ResponseWriter, r *http.Request) {
	seed := s.dash.Catalog()
	if seed == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "catalog is remote"})
		return
	}

	var item domain.StockItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, errs.FromValidation(map[string]string{"body": err.Error()}))
		return
	}
	item.ID = r.PathValue("id")

	seed.Set(item)
	writeJSON(w, http.StatusOK, item)
}

// lookupItem resolves a stock item from the current catalog snapshot.
func (s *Server) lookupItem(ctx context.Context, itemID string) (domain.StockItem, error) {
	items, err := s.dash.provider.GetStockSnapshot(ctx)
	if err != nil {
		return domain.StockItem{}, err
	}
	for _, it := range items {
		if it.ID == itemID {
			return it, nil
		}
	}
	return domain.StockItem{}, errs.FromValidation(map[string]string{"item_id": "unknown stock item"})
}

// uiError is the wire form of a classified error. UITitle and UIMessage are
// surfaced verbatim; clients must not re-derive messages.
type uiError struct {
	Kind      errs.Kind         `json:"kind"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Severity  errs.Severity     `json:"severity"`
	Retryable bool              `json:"retryable"`
	Fields    map[string]string `json:"fields,omitempty"`
	Shortfall []errs.Shortfall  `json:"shortfalls,omitempty"`
}

func toUIError(ce *errs.ClassifiedError) *uiError {
	return &uiError{
		Kind:      ce.Kind,
		Title:     ce.UITitle,
		Message:   ce.UIMessage,
		Severity:  ce.Severity,
		Retryable: ce.Retryable,
		Fields:    ce.FieldErrors,
		Shortfall: ce.Shortfalls,
	}
}

func writeError(w http.ResponseWriter, err error) {
	ce := errs.From(err)

	status := http.StatusInternalServerError
	switch ce.Kind {
	case errs.KindValidation, errs.KindEmptyCart, errs.KindEmptyHistory:
		status = http.StatusBadRequest
	case errs.KindPermission:
		status = http.StatusForbidden
	case errs.KindStockInsufficient, errs.KindConflict:
		status = http.StatusConflict
	case errs.KindNetwork:
		status = http.StatusBadGateway
	}

	writeJSON(w, status, map[string]*uiError{"error": toUIError(ce)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
