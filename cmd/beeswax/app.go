package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/cinema6/beeswax-client/internal/secrets"
	"github.com/cinema6/beeswax-client/pkg/beeswax"
	"github.com/cinema6/beeswax-client/pkg/config"
	pkgsecrets "github.com/cinema6/beeswax-client/pkg/secrets"
)

// app carries what every subcommand needs.
type app struct {
	cfg *config.Config
	log *zap.Logger
	out io.Writer

	// newProvider is swapped out in tests.
	newProvider func(ctx context.Context, region string) (pkgsecrets.Provider, error)
	resolver    *secrets.Resolver
}

func newApp(cfg *config.Config, log *zap.Logger, out io.Writer) *app {
	return &app{
		cfg: cfg,
		log: log,
		out: out,
		newProvider: func(ctx context.Context, region string) (pkgsecrets.Provider, error) {
			return pkgsecrets.NewAWSProvider(ctx, region)
		},
	}
}

func (a *app) secretsResolver(ctx context.Context) (*secrets.Resolver, error) {
	if a.resolver != nil {
		return a.resolver, nil
	}
	provider, err := a.newProvider(ctx, a.cfg.AWSRegion)
	if err != nil {
		return nil, fmt.Errorf("secrets provider: %w", err)
	}
	a.resolver = secrets.NewResolver(a.log, a.cfg.Env, provider,
		pkgsecrets.NewCache[beeswax.Credentials](a.cfg.SecretCacheTTL))
	return a.resolver, nil
}

// credentials prefers BEESWAX_EMAIL/BEESWAX_PASSWORD, then the account secret.
func (a *app) credentials(ctx context.Context) (beeswax.Credentials, error) {
	if a.cfg.HasStaticCreds() {
		return beeswax.Credentials{Email: a.cfg.Email, Password: a.cfg.Password}, nil
	}
	if a.cfg.Account == "" {
		return beeswax.Credentials{}, fmt.Errorf("set BEESWAX_EMAIL and BEESWAX_PASSWORD, or BEESWAX_ACCOUNT: %w", beeswax.ErrMissingCredentials)
	}
	r, err := a.secretsResolver(ctx)
	if err != nil {
		return beeswax.Credentials{}, err
	}
	return r.Resolve(ctx, a.cfg.Account)
}

func (a *app) client(ctx context.Context) (*beeswax.Client, error) {
	creds, err := a.credentials(ctx)
	if err != nil {
		return nil, err
	}
	opts := []beeswax.Option{
		beeswax.WithLogger(a.log),
		beeswax.WithHTTPClient(&http.Client{Timeout: a.cfg.HTTPTimeout}),
	}
	if a.cfg.RateLimitRPS > 0 {
		opts = append(opts, beeswax.WithRateLimit(a.cfg.RateLimitRPS, a.cfg.RateLimitBurst))
	}
	return beeswax.New(beeswax.Config{APIRoot: a.cfg.APIRoot, Creds: creds}, opts...)
}

func (a *app) resource(ctx context.Context, name string) (*beeswax.Resource, error) {
	if !slices.Contains(beeswax.ResourceNames(), name) {
		return nil, fmt.Errorf("unknown resource %q (want one of %v)", name, beeswax.ResourceNames())
	}
	c, err := a.client(ctx)
	if err != nil {
		return nil, err
	}
	r, _ := c.Resource(name)
	return r, nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
