// Package secrets resolves Beeswax account credentials from a secrets
// Provider. Secret names follow {env}/{account}/beeswax.
package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cinema6/beeswax-client/pkg/beeswax"
	pkgsecrets "github.com/cinema6/beeswax-client/pkg/secrets"
	"github.com/cinema6/beeswax-client/pkg/utils"
)

const venue = "beeswax"

// Resolver looks up and caches per-account Beeswax credentials.
type Resolver struct {
	logger   *zap.Logger
	env      string
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[beeswax.Credentials]
}

// NewResolver builds a resolver for env. A nil logger is replaced by a no-op.
func NewResolver(logger *zap.Logger, env string, provider pkgsecrets.Provider, cache *pkgsecrets.Cache[beeswax.Credentials]) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		logger:   logger,
		env:      strings.ToLower(env),
		provider: provider,
		cache:    cache,
	}
}

// SecretName is the secret holding account's credentials.
func (r *Resolver) SecretName(account string) string {
	return strings.ToLower(fmt.Sprintf("%s/%s/%s", r.env, account, venue))
}

func cacheKey(account string) string {
	return strings.ToLower(account + "|" + venue)
}

// Resolve returns account's credentials, from cache when possible.
func (r *Resolver) Resolve(ctx context.Context, account string) (beeswax.Credentials, error) {
	if account == "" {
		return beeswax.Credentials{}, fmt.Errorf("resolve credentials: %w", beeswax.ErrMissingCredentials)
	}
	key := cacheKey(account)
	if creds, ok := r.cache.Get(key); ok {
		return creds, nil
	}

	name := r.SecretName(account)
	raw, err := r.provider.GetSecret(ctx, name)
	if err != nil {
		r.logger.Warn("aws.secret_fetch_failed",
			zap.String("key", name),
			zap.Error(err))
		return beeswax.Credentials{}, fmt.Errorf("resolve credentials for %q: %w", account, err)
	}
	creds, err := ParseCredentials(raw)
	if err != nil {
		return beeswax.Credentials{}, fmt.Errorf("parse secret %q: %w", name, err)
	}

	r.cache.Put(key, creds)
	r.logger.Info("aws.credentials_resolved",
		zap.String("account", account),
		zap.String("user", utils.MaskEmail(creds.Email)))
	return creds, nil
}

// ParseCredentials reads the email and password fields of a secret.
func ParseCredentials(raw map[string]string) (beeswax.Credentials, error) {
	creds := beeswax.Credentials{Email: raw["email"], Password: raw["password"]}
	if creds.Email == "" || creds.Password == "" {
		return beeswax.Credentials{}, beeswax.ErrMissingCredentials
	}
	return creds, nil
}

// DiscoverAccounts lists the accounts that have a Beeswax secret in env.
func (r *Resolver) DiscoverAccounts(ctx context.Context) ([]string, error) {
	prefix := r.env + "/"
	suffix := "/" + venue

	names, err := r.provider.ListSecrets(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("discover accounts: %w", err)
	}

	accounts := []string{}
	for _, name := range names {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, prefix) || !strings.HasSuffix(lower, suffix) {
			continue
		}
		account := strings.TrimSuffix(strings.TrimPrefix(lower, prefix), suffix)
		if account != "" && !strings.Contains(account, "/") {
			accounts = append(accounts, account)
		}
	}

	r.logger.Info("aws.accounts_discovered",
		zap.Int("count", len(accounts)),
		zap.Strings("accounts", accounts))
	return accounts, nil
}
