// Package control wires the transaction core into a running dashboard
// backend: one engine per operator session, fronted by a JSON HTTP API with
// health and metrics endpoints.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"checkout/internal/engine"
	"checkout/internal/infra/catalog"
	"checkout/internal/infra/client"
	"checkout/internal/infra/storage"
	"checkout/internal/infra/storage/memory"
	"checkout/internal/infra/storage/postgres"
	"checkout/internal/metrics"
)

// Config holds the dashboard configuration. A nil TaxRate selects the
// engine's default; an explicit zero means tax-free.
type Config struct {
	Port          int
	Client        client.Config
	CatalogURL    string
	Redis         catalog.RedisConfig
	Database      postgres.Config
	TaxRate       *decimal.Decimal
	FinalizeRoles []string
}

// Dashboard owns the shared collaborators and the per-operator sessions.
type Dashboard struct {
	cfg      Config
	client   *client.Client
	sales    *client.SalesAPI
	provider catalog.Provider
	seed     *catalog.Memory
	journal  storage.SaleRepository
	db       *postgres.DB
	cache    *catalog.Cached
	server   *Server
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// session is one operator's cart. The engine synchronizes its own
// operations, so concurrent handlers work on it directly.
type session struct {
	id     string
	role   string
	engine *engine.Engine
}

// NewDashboard creates a dashboard with all dependencies initialized.
func NewDashboard(cfg Config) (*Dashboard, error) {
	c, err := client.New(cfg.Client)
	if err != nil {
		return nil, fmt.Errorf("persistence client: %w", err)
	}

	d := &Dashboard{
		cfg:      cfg,
		client:   c,
		sales:    client.NewSalesAPI(c),
		sessions: make(map[string]*session),
		log:      slog.Default(),
	}

	// Catalog: remote HTTP when configured, otherwise a local in-process
	// catalog seeded through the admin surface.
	if cfg.CatalogURL != "" {
		catCfg := cfg.Client
		catCfg.BaseEndpoint = cfg.CatalogURL
		catClient, err := client.New(catCfg)
		if err != nil {
			return nil, fmt.Errorf("catalog client: %w", err)
		}
		d.provider = catalog.NewHTTP(catClient)
		slog.Info("Using remote catalog", "url", cfg.CatalogURL)
	} else {
		d.seed = catalog.NewMemory()
		d.provider = d.seed
		slog.Warn("No catalog URL configured, using empty in-process catalog")
	}

	if cfg.Redis.URL != "" {
		cached, err := catalog.NewCached(d.provider, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("catalog cache: %w", err)
		}
		d.cache = cached
		d.provider = cached
		slog.Info("Catalog snapshot cache enabled", "ttl", cfg.Redis.TTL)
	}

	// Sales journal: postgres when configured, in-memory otherwise.
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		d.db = db
		d.journal = postgres.NewSaleRepo(db)
		slog.Info("Using PostgreSQL sales journal")
	} else {
		d.journal = memory.NewSaleRepo()
		slog.Info("Using in-memory sales journal")
	}

	d.server = NewServer(d, cfg.Port)
	return d, nil
}

// Start runs the HTTP server until the context is cancelled.
func (d *Dashboard) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.server.Start()
	}()
	slog.Info("Dashboard listening", "port", d.cfg.Port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return d.Shutdown()
	}
}

// Shutdown stops the server and releases connections.
func (d *Dashboard) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := d.server.Stop(ctx)
	if d.cache != nil {
		_ = d.cache.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
	return err
}

// Catalog exposes the local seed catalog, nil when a remote catalog is used.
func (d *Dashboard) Catalog() *catalog.Memory {
	return d.seed
}

// OpenSession creates a session for an operator role and returns its ID.
func (d *Dashboard) OpenSession(role string) string {
	id := uuid.NewString()

	sess := &session{
		id:   id,
		role: role,
		engine: engine.New(engine.Config{
			Catalog: d.provider,
			Poster:  d.sales,
			Gate:    roleGate{role: role, allowed: d.cfg.FinalizeRoles},
			Journal: d.journal,
			TaxRate: d.cfg.TaxRate,
		}),
	}

	d.mu.Lock()
	d.sessions[id] = sess
	d.mu.Unlock()

	metrics.ActiveSessions.Inc()
	d.log.Info("session opened", "session_id", id, "role", role)
	return id
}

// CloseSession removes a session.
func (d *Dashboard) CloseSession(id string) bool {
	d.mu.Lock()
	_, ok := d.sessions[id]
	delete(d.sessions, id)
	d.mu.Unlock()

	if ok {
		metrics.ActiveSessions.Dec()
		d.log.Info("session closed", "session_id", id)
	}
	return ok
}

func (d *Dashboard) getSession(id string) (*session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sess, ok := d.sessions[id]
	return sess, ok
}

// roleGate grants finalize permission based on the operator's role.
type roleGate struct {
	role    string
	allowed []string
}

func (g roleGate) CanFinalize(action string) bool {
	if action != engine.ActionFinalizeSale {
		return false
	}
	for _, r := range g.allowed {
		if r == g.role {
			return true
		}
	}
	return false
}
