package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// KeySource supplies the bearer token for the completion endpoint.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// StaticKey is a key taken from the environment at startup.
type StaticKey string

func (k StaticKey) APIKey(_ context.Context) (string, error) {
	key := strings.TrimSpace(string(k))
	if key == "" {
		return "", errors.New("openai: API token is empty")
	}
	return key, nil
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

// ParamStoreKey reads the key from an SSM parameter holding {"token": "..."}.
type ParamStoreKey struct {
	getter Getter
	name   string
}

func NewParamStoreKey(ps Getter, paramPrefix string) (*ParamStoreKey, error) {
	if ps == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	return &ParamStoreKey{getter: ps, name: paramPrefix + "/perplexity-api-key"}, nil
}

func (k *ParamStoreKey) APIKey(ctx context.Context) (string, error) {
	return fetchAPIKeyFromParamStore(ctx, k.getter, k.name)
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("openai: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("openai: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("openai: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("openai: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", fmt.Errorf("openai: API token is empty")
	}
	return tp.Token, nil
}
