package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeGetter is a minimal paramstore.Getter stub for use within this package.
type fakeGetter struct {
	val      string
	err      error
	lastName string
}

func (f *fakeGetter) GetParameter(_ context.Context, name string) (string, error) {
	f.lastName = name
	return f.val, f.err
}

func TestStaticKey(t *testing.T) {
	key, err := StaticKey(" pplx-abc ").APIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "pplx-abc", key)

	_, err = StaticKey("   ").APIKey(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}

func TestNewParamStoreKey_Validates(t *testing.T) {
	_, err := NewParamStoreKey(nil, "/broker-agent")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")

	_, err = NewParamStoreKey(&fakeGetter{}, " / ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "prefix")
}

func TestParamStoreKey_UsesPrefixedName(t *testing.T) {
	g := &fakeGetter{val: `{"token":"pplx-from-ssm"}`}
	k, err := NewParamStoreKey(g, "/broker-agent/")
	require.NoError(t, err)

	key, err := k.APIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "pplx-from-ssm", key)
	require.Equal(t, "/broker-agent/perplexity-api-key", g.lastName)
}

func TestFetchAPIKey_JSONToken(t *testing.T) {
	g := &fakeGetter{val: `{"token":"pplx-from-json"}`}
	key, err := fetchAPIKeyFromParamStore(context.Background(), g, "/broker-agent/perplexity-api-key")
	require.NoError(t, err)
	require.Equal(t, "pplx-from-json", key)
}

func TestFetchAPIKey_JSONMissingTokenField(t *testing.T) {
	g := &fakeGetter{val: `{"other":"value"}`}
	_, err := fetchAPIKeyFromParamStore(context.Background(), g, "/broker-agent/perplexity-api-key")
	require.Error(t, err)
	require.Contains(t, err.Error(), "API token is empty")
}

func TestFetchAPIKey_MalformedJSON(t *testing.T) {
	g := &fakeGetter{val: `{"broken`}
	_, err := fetchAPIKeyFromParamStore(context.Background(), g, "/broker-agent/perplexity-api-key")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unmarshal")
}

func TestFetchAPIKey_GetterError(t *testing.T) {
	g := &fakeGetter{err: errors.New("ssm unavailable")}
	_, err := fetchAPIKeyFromParamStore(context.Background(), g, "/broker-agent/perplexity-api-key")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm unavailable")
}

func TestFetchAPIKey_NilGetter(t *testing.T) {
	_, err := fetchAPIKeyFromParamStore(context.Background(), nil, "/broker-agent/perplexity-api-key")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestFetchAPIKey_EmptyName(t *testing.T) {
	g := &fakeGetter{val: `{"token":"pplx-from-json"}`}
	_, err := fetchAPIKeyFromParamStore(context.Background(), g, " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")
}
