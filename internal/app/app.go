package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jefmud/species-ident/internal/db"
	"github.com/jefmud/species-ident/internal/handlers"
	"github.com/jefmud/species-ident/internal/messaging"
	"github.com/jefmud/species-ident/internal/services"
)

// Services is everything the HTTP layer and the CLI commands share.
type Services struct {
	Store      services.Store
	Users      *services.UserService
	Catalog    *services.CatalogService
	Ledger     *services.LedgerService
	Picker     *services.Picker
	Aggregator *services.Aggregator

	closers []func()
}

func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// OpenStore connects to PostgreSQL and ensures the schema exists, or returns
// an in-memory store for memory://.
func OpenStore(ctx context.Context, cfg Config) (services.Store, error) {
	if cfg.DatabaseURL == MemoryDatabaseURL {
		log.Println("Warning: using in-memory store, data is lost on exit")
		return db.NewMemoryStore(), nil
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: int32(cfg.DBMaxConns),
		MinConns: int32(cfg.DBMinConns),
	})
	if err != nil {
		return nil, err
	}
	if err := db.CreateSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return db.NewPostgresStore(pool), nil
}

// NewServices wires the services on top of an open store.
func NewServices(ctx context.Context, cfg Config, store services.Store) (*Services, error) {
	s := &Services{Store: store}
	s.closers = append(s.closers, store.Close)

	var denylist services.TokenDenylist = db.NewMemoryDenylist()
	if cfg.RedisAddr != "" {
		rdb, err := db.ConnectRedis(ctx, db.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			s.Close()
			return nil, err
		}
		denylist = rdb
		s.closers = append(s.closers, func() { _ = rdb.Close() })
	}

	tokens := services.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, denylist)
	s.Users = services.NewUserService(store, tokens)
	s.Catalog = services.NewCatalogService(store, cfg.CatalogSize)
	s.Aggregator = services.NewAggregator(store, s.Catalog)
	s.Picker = services.NewPicker(store)
	s.Ledger = services.NewLedgerService(store, s.Catalog)

	if cfg.NatsURL != "" {
		pub, err := messaging.Connect(cfg.NatsURL, cfg.NatsSubjectPrefix)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Ledger.AddSink(pub)
		s.closers = append(s.closers, pub.Close)
	}

	return s, nil
}

// Setup opens the store and wires the services from the configuration
func Setup(ctx context.Context, cfg Config) (*Services, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return NewServices(ctx, cfg, store)
}

// Run serves the API until SIGINT or SIGTERM
func Run(cfg Config) error {
	svc, err := Setup(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	hub := handlers.NewHub(svc.Aggregator)
	defer hub.Close()
	svc.Ledger.AddSink(hub)

	app := handlers.NewApp(handlers.Deps{
		Users:      svc.Users,
		Catalog:    svc.Catalog,
		Ledger:     svc.Ledger,
		Picker:     svc.Picker,
		Aggregator: svc.Aggregator,
		Hub:        hub,
		Limiter:    handlers.NewLoginLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst),
	})

	// Start Server
	errc := make(chan error, 1)
	go func() {
		errc <- app.Listen(":" + cfg.Port)
	}()

	// Graceful Shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case <-c:
	case err := <-errc:
		return err
	}
	log.Println("Gracefully shutting down...")
	_ = app.Shutdown()
	log.Println("Server shutdown complete")
	return nil
}
