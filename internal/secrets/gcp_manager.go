package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// SecretPrefix marks a config value as a Secret Manager reference,
// e.g. SOURCE_API_KEY=secret://prestashop-ws-key
const SecretPrefix = "secret://"

// cacheEntry represents a cached secret with expiration
type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// GCPSecretResolver resolves secret:// config values against Google
// Cloud Secret Manager
type GCPSecretResolver struct {
	client    *secretmanager.Client
	projectID string
	cache     map[string]*cacheEntry
	cacheMu   sync.RWMutex
	cacheTTL  time.Duration
}

// NewGCPSecretResolver creates a new Secret Manager backed resolver
func NewGCPSecretResolver(ctx context.Context, projectID string) (*GCPSecretResolver, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}

	return &GCPSecretResolver{
		client:    client,
		projectID: projectID,
		cache:     make(map[string]*cacheEntry),
		cacheTTL:  5 * time.Minute,
	}, nil
}

// Close closes the Secret Manager client
func (r *GCPSecretResolver) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Resolve returns the value itself unless it carries the secret://
// prefix, in which case the named secret's latest version is fetched.
func (r *GCPSecretResolver) Resolve(ctx context.Context, value string) (string, error) {
	if !strings.HasPrefix(value, SecretPrefix) {
		return value, nil
	}
	secretID := strings.TrimPrefix(value, SecretPrefix)
	if secretID == "" {
		return "", fmt.Errorf("empty secret reference")
	}
	return r.getSecret(ctx, secretID)
}

func (r *GCPSecretResolver) getSecret(ctx context.Context, secretID string) (string, error) {
	r.cacheMu.RLock()
	if entry, ok := r.cache[secretID]; ok && time.Now().Before(entry.expiresAt) {
		r.cacheMu.RUnlock()
		return entry.value, nil
	}
	r.cacheMu.RUnlock()

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", r.projectID, secretID)
	result, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", secretID, err)
	}

	value := string(result.Payload.Data)

	r.cacheMu.Lock()
	r.cache[secretID] = &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(r.cacheTTL),
	}
	r.cacheMu.Unlock()

	return value, nil
}

// InvalidateCache removes a secret from the cache
func (r *GCPSecretResolver) InvalidateCache(secretID string) {
	r.cacheMu.Lock()
	delete(r.cache, secretID)
	r.cacheMu.Unlock()
}
