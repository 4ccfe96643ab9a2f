package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"planner/internal/infra"
	"planner/internal/sqlinline"
)

// ProviderVeo names the provider_credentials row holding the Google API key
// used for Veo requests.
const ProviderVeo = "veo"

// Store reads and writes provider API keys kept in provider_credentials.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) VeoAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderVeo)
}

// ResolveVeoAPIKey prefers a key from the environment and falls back to the
// stored token.
func (s *Store) ResolveVeoAPIKey(ctx context.Context, envKey string) (string, error) {
	if key := strings.TrimSpace(envKey); key != "" {
		return key, nil
	}
	key, err := s.VeoAPIKey(ctx)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", errors.New("google api key is not configured; set GOOGLE_API_KEY or run veokey")
	}
	return key, nil
}

// Token returns the stored key for provider, or "" when none is set.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectProviderCredential, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetVeoAPIKey stores key for Veo. props are merged into the properties
// already recorded for the provider.
func (s *Store) SetVeoAPIKey(ctx context.Context, key string, props map[string]any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("veo api key is required")
	}
	return s.upsert(ctx, ProviderVeo, key, props)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertProviderCredential, provider, token, raw)
	return err
}
