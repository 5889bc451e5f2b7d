package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPProviderExchangesCodeForClaims(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "auth-code-123", r.FormValue("code"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"unionid":"u1","openid":"o1","phone":"+10000000000"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(Config{BaseURL: srv.URL, ClientID: "cid", ClientSecret: "secret"})

	claims, err := p.Exchange(context.Background(), "auth-code-123")
	require.NoError(t, err)
	require.Equal(t, Claims{UnionID: "u1", OpenID: "o1", Phone: "+10000000000"}, claims)
}

func TestHTTPProviderErrorsOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewHTTPProvider(Config{BaseURL: srv.URL})

	_, err := p.Exchange(context.Background(), "bad-code")
	require.Error(t, err)
}

func TestHTTPProviderErrorsOnEmptyIdentifiers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(Config{BaseURL: srv.URL})

	_, err := p.Exchange(context.Background(), "code")
	require.Error(t, err)
}
