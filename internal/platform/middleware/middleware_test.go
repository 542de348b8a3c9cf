package middleware_test

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identityshelf/internal/platform/middleware"
	"identityshelf/pkg/requestcontext"
	"identityshelf/pkg/testutil"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRequestIDIsGeneratedAndEchoed(t *testing.T) {
	var seen string
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/identities"))
	assert.NotEmpty(t, seen, "a request without an ID gets one assigned")
	assert.Equal(t, seen, rr.Header().Get("X-Request-Id"))
}

func TestRequestIDFromHeaderIsPreserved(t *testing.T) {
	var seen string
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	req := testutil.NewRequest(t, http.MethodGet, "/identities")
	req.Header.Set("X-Request-Id", "req-42")
	rr := testutil.DoRequest(h, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rr.Header().Get("X-Request-Id"))
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	h := middleware.Recovery(discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/identities"))
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	testutil.AssertErrorCode(t, rr, "internal_error")
}

func TestRequireAuth(t *testing.T) {
	const signingKey = "test-signing-key"
	validator := middleware.NewHMACValidator(signingKey)

	var actor string
	protected := middleware.RequireAuth(validator, discard())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor = requestcontext.Actor(r.Context())
		}))

	testutil.Given(t, "no Authorization header", func(t *testing.T) {
		rr := testutil.DoRequest(protected, testutil.NewRequest(t, http.MethodGet, "/admin/schema"))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
		testutil.AssertErrorCode(t, rr, "unauthorized")
	})

	testutil.Given(t, "a token signed with the wrong key", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "intruder"}).
			SignedString([]byte("some-other-key"))
		require.NoError(t, err)

		req := testutil.NewRequest(t, http.MethodGet, "/admin/schema")
		req.Header.Set("Authorization", "Bearer "+token)
		rr := testutil.DoRequest(protected, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	testutil.Given(t, "a token without a subject", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{}).
			SignedString([]byte(signingKey))
		require.NoError(t, err)

		req := testutil.NewRequest(t, http.MethodGet, "/admin/schema")
		req.Header.Set("Authorization", "Bearer "+token)
		rr := testutil.DoRequest(protected, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	testutil.Given(t, "a valid token", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "admin@example.com"}).
			SignedString([]byte(signingKey))
		require.NoError(t, err)

		req := testutil.NewRequest(t, http.MethodGet, "/admin/schema")
		req.Header.Set("Authorization", "Bearer "+token)
		rr := testutil.DoRequest(protected, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Equal(t, "admin@example.com", actor, "the subject becomes the request actor")
	})
}

func TestRequestScopedContextHelpers(t *testing.T) {
	pinned := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	req := testutil.NewRequest(t, http.MethodGet, "/identities")
	req = testutil.WithActor(req, "admin@example.com")
	req = testutil.WithRequestID(req, "req-7")
	req = testutil.WithRequestTime(req, pinned)

	ctx := req.Context()
	assert.Equal(t, "admin@example.com", requestcontext.Actor(ctx))
	assert.Equal(t, "req-7", requestcontext.RequestID(ctx))
	assert.Equal(t, pinned, requestcontext.Now(ctx))
}
