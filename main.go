package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-service/handlers"
	"storefront-service/internal/auth"
	"storefront-service/internal/cart"
	"storefront-service/internal/config"
	"storefront-service/internal/consul"
	"storefront-service/internal/idempotency"
	"storefront-service/internal/metrics"
	"storefront-service/internal/notify"
	"storefront-service/internal/offers"
	"storefront-service/internal/orders"
	"storefront-service/internal/products"
	"storefront-service/internal/stores/kafka"
	"storefront-service/internal/stores/memory"
	"storefront-service/internal/stores/postgres"
	"storefront-service/internal/stores/proofs"
	"storefront-service/internal/users"
	"storefront-service/pkg/logkey"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type stores struct {
	products products.Store
	users    users.Store
	cart     cart.Store
	orders   orders.Store
	offers   offers.Store
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", slog.String("Reason", err.Error()))
	}

	if err := startApp(); err != nil {
		slog.Error("storefront stopped", slog.String(logkey.ERROR, err.Error()))
		os.Exit(1)
	}
}

func startApp() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, db, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	keys, err := auth.LoadKeys(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("loading auth keys: %w", err)
	}

	proofStore, err := proofs.New(ctx, cfg.Proof)
	if err != nil {
		return fmt.Errorf("setting up proof storage: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewServerMetrics(cfg.ServiceName, reg)

	opts := orders.Options{VerifyTotal: cfg.VerifyOrderTotal, Recorder: m}
	if cfg.Mail.Enabled() {
		mailer, err := notify.NewMailer(cfg.Mail)
		if err != nil {
			return fmt.Errorf("setting up mailer: %w", err)
		}
		opts.Notifier = mailer
	} else {
		slog.Warn("SMTP not configured, admin order emails disabled")
	}
	if len(cfg.KafkaBrokers) > 0 {
		k, err := kafka.NewConf(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("setting up kafka: %w", err)
		}
		defer k.Close()
		opts.Events = k
	}

	svc, err := orders.NewService(st.orders, st.products, proofStore, opts)
	if err != nil {
		return err
	}
	defer svc.Wait()

	var idem idempotency.Store = idempotency.NewMemoryStore()
	if cfg.RedisURL != "" {
		rs, err := idempotency.NewRedisStore(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rs.Close()
		idem = rs
	}

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		created, err := users.EnsureUser(ctx, st.users, users.NewUser{
			Name:     "Admin",
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
		}, []string{auth.RoleAdmin, auth.RoleUser})
		if err != nil {
			return fmt.Errorf("seeding admin account: %w", err)
		}
		if created {
			slog.Info("admin account created", slog.String("Email", cfg.AdminEmail))
		}
	}

	router, err := handlers.API(cfg.GinMode, cfg.EndpointPrefix, handlers.Deps{
		Products:      st.products,
		Users:         st.users,
		Cart:          st.cart,
		Offers:        st.offers,
		Orders:        svc,
		Proofs:        proofStore,
		Idempotency:   idem,
		Keys:          keys,
		Metrics:       m,
		MaxProofBytes: cfg.Proof.MaxBytes,
	})
	if err != nil {
		return fmt.Errorf("building router: %w", err)
	}

	if cfg.ConsulAddress != "" {
		deregister, err := registerService(cfg)
		if err != nil {
			return err
		}
		defer deregister()
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("storefront listening", slog.String("Addr", srv.Addr), slog.String("Store", cfg.StoreDriver))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutdown started")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("could not stop server gracefully: %w", err)
	}
	slog.Info("shutdown complete")
	return nil
}

// openStores returns the Postgres stores, migrated, or the in-memory store. db is nil for memory.
func openStores(ctx context.Context, cfg *config.Config) (stores, *sql.DB, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Warn("using in-memory store, data is lost on restart")
		s := memory.New()
		return stores{products: s, users: s, cart: s, orders: s, offers: s}, nil, nil
	}

	db, err := postgres.OpenDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, nil, err
	}
	if err := postgres.RunMigration(db); err != nil {
		_ = db.Close()
		return stores{}, nil, fmt.Errorf("running migrations: %w", err)
	}

	p, err := products.NewConf(db)
	if err != nil {
		_ = db.Close()
		return stores{}, nil, err
	}
	u, err := users.NewConf(db)
	if err != nil {
		_ = db.Close()
		return stores{}, nil, err
	}
	c, err := cart.NewConf(db)
	if err != nil {
		_ = db.Close()
		return stores{}, nil, err
	}
	o, err := orders.NewConf(db)
	if err != nil {
		_ = db.Close()
		return stores{}, nil, err
	}
	of, err := offers.NewConf(db)
	if err != nil {
		_ = db.Close()
		return stores{}, nil, err
	}
	return stores{products: p, users: u, cart: c, orders: o, offers: of}, db, nil
}

// registerService announces the service to consul and returns the deregistration hook.
func registerService(cfg *config.Config) (func(), error) {
	client, err := consul.NewClient(cfg.ConsulAddress)
	if err != nil {
		return nil, fmt.Errorf("creating consul client: %w", err)
	}
	regID, err := consul.RegisterService(client, consul.Registration{Name: cfg.ServiceName, Host: cfg.ServiceHost, Port: cfg.Port})
	if err != nil {
		return nil, fmt.Errorf("registering with consul: %w", err)
	}
	return func() {
		if err := consul.DeregisterService(client, regID); err != nil {
			slog.Error("consul deregistration failed", slog.String(logkey.ERROR, err.Error()))
		}
	}, nil
}
