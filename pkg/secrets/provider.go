// Package secrets abstracts where account credentials are stored.
package secrets

import "context"

// Provider looks up JSON-object secrets by name.
type Provider interface {
	// GetSecret returns the secret's string fields.
	GetSecret(ctx context.Context, name string) (map[string]string, error)

	// ListSecrets returns the names of secrets starting with prefix.
	ListSecrets(ctx context.Context, prefix string) ([]string, error)
}
