package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identityhandler "identityshelf/internal/identity/handler"
	identityservice "identityshelf/internal/identity/service"
	identitystore "identityshelf/internal/identity/store"
	"identityshelf/internal/platform/middleware"
	schemahandler "identityshelf/internal/schema/handler"
	schemaservice "identityshelf/internal/schema/service"
	schemastore "identityshelf/internal/schema/store"
	"identityshelf/pkg/platform/tx"
)

const signingKey = "integration-test-key"

// newAPI wires the full router the way cmd/server does in memory mode:
// middleware chain, JWT auth, and both handler trees mounted under /api/v1.
func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	mem := schemastore.NewInMemory()
	schemaSvc := schemaservice.New(mem, mem, logger)
	identitySvc := identityservice.New(
		identitystore.NewMemoryIdentities(),
		identitystore.NewMemoryValues(),
		identitystore.NewMemoryIdentifiers(),
		schemaSvc,
		schemaservice.NewValidator(logger),
		tx.NopRunner{},
		logger,
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	auth := middleware.RequireAuth(middleware.NewHMACValidator(signingKey), logger)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth)
		r.Mount("/admin/schema", schemahandler.New(schemaSvc).Routes())
		r.Mount("/", identityhandler.New(identitySvc).Routes())
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject}).
		SignedString([]byte(signingKey))
	require.NoError(t, err)
	return token
}

func call(t *testing.T, srv *httptest.Server, token, method, path string, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestAPIRejectsUnauthenticatedRequests(t *testing.T) {
	srv := newAPI(t)

	status := call(t, srv, "", http.MethodGet, "/api/v1/identities", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = call(t, srv, "", http.MethodPost, "/api/v1/admin/schema/identity-types",
		map[string]string{"name": "person"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

// TestSchemaToIdentityFlow drives the API end to end: an admin defines a
// schema, then an identity is created against it, picks up an identifier,
// and the verifying actor is taken from the bearer token.
func TestSchemaToIdentityFlow(t *testing.T) {
	srv := newAPI(t)
	token := signToken(t, "admin@example.com")

	var person struct {
		ID string `json:"id"`
	}
	status := call(t, srv, token, http.MethodPost, "/api/v1/admin/schema/identity-types",
		map[string]string{"name": "person", "display_name": "Person"}, &person)
	require.Equal(t, http.StatusCreated, status)

	var firstName struct {
		ID string `json:"id"`
	}
	status = call(t, srv, token, http.MethodPost, "/api/v1/admin/schema/attribute-types",
		map[string]string{"name": "first_name", "data_type": "STRING"}, &firstName)
	require.Equal(t, http.StatusCreated, status)

	status = call(t, srv, token, http.MethodPost,
		"/api/v1/admin/schema/identity-types/"+person.ID+"/attribute-mappings",
		map[string]any{"attribute_type_id": firstName.ID, "required": true}, nil)
	require.Equal(t, http.StatusCreated, status)

	var email struct {
		ID string `json:"id"`
	}
	status = call(t, srv, token, http.MethodPost, "/api/v1/admin/schema/identifier-types",
		map[string]any{
			"name": "email", "data_type": "EMAIL",
			"validation_regex": `[^@\s]+@[^@\s]+\.[a-z]{2,}`,
			"unique":           true, "searchable": true,
		}, &email)
	require.Equal(t, http.StatusCreated, status)

	status = call(t, srv, token, http.MethodPost,
		"/api/v1/admin/schema/identity-types/"+person.ID+"/identifier-mappings",
		map[string]any{"identifier_type_id": email.ID, "primary_candidate": true}, nil)
	require.Equal(t, http.StatusCreated, status)

	var detail struct {
		Identity struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"identity"`
	}
	status = call(t, srv, token, http.MethodPost, "/api/v1/identities", map[string]any{
		"identity_type_id": person.ID,
		"attributes":       map[string]string{"first_name": "Ada"},
	}, &detail)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "PENDING", detail.Identity.Status)

	var ident struct {
		ID string `json:"id"`
	}
	status = call(t, srv, token, http.MethodPost,
		"/api/v1/identities/"+detail.Identity.ID+"/identifiers",
		map[string]any{"identifier_type_id": email.ID, "value": "ada@example.com", "primary": true}, &ident)
	require.Equal(t, http.StatusCreated, status)

	var verified struct {
		Verified   bool   `json:"verified"`
		VerifiedBy string `json:"verified_by,omitempty"`
	}
	status = call(t, srv, token, http.MethodPost, "/api/v1/identifiers/"+ident.ID+"/verify", nil, &verified)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, verified.Verified)
	assert.Equal(t, "admin@example.com", verified.VerifiedBy, "actor comes from the token subject")

	var found []struct {
		ID string `json:"id"`
	}
	status = call(t, srv, token, http.MethodGet, "/api/v1/identities/search?identifier=ada@example.com", nil, &found)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, found, 1)
	assert.Equal(t, detail.Identity.ID, found[0].ID)
}
