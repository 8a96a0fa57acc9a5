package router

import (
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/francopicc/ameba/app/models"
	"github.com/francopicc/ameba/app/repository"
	"github.com/francopicc/ameba/internal/pkg/checkout"
	"github.com/francopicc/ameba/internal/pkg/env"
	"github.com/francopicc/ameba/internal/pkg/identity"
	"github.com/francopicc/ameba/internal/pkg/metrics"
	"github.com/francopicc/ameba/internal/pkg/tenancy"
	"github.com/francopicc/ameba/internal/pkg/terminal"
)

// Config carries the settings the HTTP layer needs.
type Config struct {
	SessionSecret  string
	SecureCookies  bool
	TerminalTTL    time.Duration
	PaymentSandbox bool
	WebhookSecret  string
	MetricsUser    string
	MetricsPass    string
}

// ConfigFromEnv reads Config from the environment.
func ConfigFromEnv() Config {
	return Config{
		SessionSecret:  env.GetEnv("SESSION_SECRET", ""),
		SecureCookies:  !env.IsDev(),
		TerminalTTL:    env.GetDuration("TERMINAL_TTL", models.DefaultTerminalTTL),
		PaymentSandbox: env.GetBool("PAYMENT_SANDBOX", false),
		WebhookSecret:  env.GetEnv("PAYMENT_WEBHOOK_SECRET", ""),
		MetricsUser:    env.GetEnv("METRICS_USER", "admin"),
		MetricsPass:    env.GetEnv("METRICS_PASSWORD", ""),
	}
}

// Deps is the object graph behind the routes.
type Deps struct {
	Config     Config
	Repos      *repository.Repositories
	Sessions   *session.Store
	Resolver   identity.Resolver
	Identities *identity.Provider
	Binder     *tenancy.Binder
	Terminals  *terminal.Service
	Checkout   *checkout.Service
	Metrics    *metrics.Metrics
}

// Option adjusts Deps after construction.
type Option func(*Deps)

// WithResolver replaces the session based identity resolver.
func WithResolver(r identity.Resolver) Option {
	return func(d *Deps) {
		d.Resolver = r
	}
}

// WithClock sets the clock of the time dependent services.
func WithClock(now func() time.Time) Option {
	return func(d *Deps) {
		d.Terminals = terminal.NewService(d.Repos,
			terminal.WithTTL(d.Config.TerminalTTL),
			terminal.WithMetrics(d.Metrics),
			terminal.WithClock(now),
		)
		d.Checkout = newCheckout(d)
	}
}

func NewDeps(cfg Config, repos *repository.Repositories, sessions *session.Store, m *metrics.Metrics, opts ...Option) *Deps {
	identities := identity.NewProvider(repos.Identity)
	d := &Deps{
		Config:     cfg,
		Repos:      repos,
		Sessions:   sessions,
		Identities: identities,
		Binder:     tenancy.NewBinder(repos.Client, identities, tenancy.NewCookieSigner(cfg.SessionSecret, cfg.SecureCookies)),
		Metrics:    m,
	}
	if sessions != nil {
		d.Resolver = identity.NewSessionResolver(sessions, repos.Identity)
	}
	d.Terminals = terminal.NewService(repos,
		terminal.WithTTL(cfg.TerminalTTL),
		terminal.WithMetrics(m),
	)
	d.Checkout = newCheckout(d)

	for _, opt := range opts {
		opt(d)
	}
	return d
}

func newCheckout(d *Deps) *checkout.Service {
	return checkout.NewService(d.Repos, d.Terminals,
		checkout.WithSandbox(d.Config.PaymentSandbox),
		checkout.WithMetrics(d.Metrics),
	)
}
