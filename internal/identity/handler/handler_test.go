package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"identityshelf/internal/identity/handler"
	identityservice "identityshelf/internal/identity/service"
	identitystore "identityshelf/internal/identity/store"
	schemamodels "identityshelf/internal/schema/models"
	schemaservice "identityshelf/internal/schema/service"
	schemastore "identityshelf/internal/schema/store"
	"identityshelf/pkg/platform/tx"
)

type IdentityHandlerSuite struct {
	suite.Suite
	server  *httptest.Server
	schemas *schemaservice.Service

	personID    string
	emailTypeID string
}

func (s *IdentityHandlerSuite) SetupTest() {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	mem := schemastore.NewInMemory()
	s.schemas = schemaservice.New(mem, mem, logger)
	svc := identityservice.New(
		identitystore.NewMemoryIdentities(),
		identitystore.NewMemoryValues(),
		identitystore.NewMemoryIdentifiers(),
		s.schemas,
		schemaservice.NewValidator(logger),
		tx.NopRunner{},
		logger,
	)
	s.server = httptest.NewServer(handler.New(svc).Routes())

	person, err := s.schemas.CreateIdentityType(ctx, "person", "Person", "")
	s.Require().NoError(err)
	s.personID = person.ID.String()

	name, err := s.schemas.CreateAttributeType(ctx, schemaservice.CreateAttributeTypeParams{
		Name: "first_name", DisplayName: "First Name", DataType: schemamodels.DataTypeString,
	})
	s.Require().NoError(err)
	_, err = s.schemas.CreateAttributeMapping(ctx, person.ID, name.ID, schemaservice.MappingParams{Required: true})
	s.Require().NoError(err)

	age, err := s.schemas.CreateAttributeType(ctx, schemaservice.CreateAttributeTypeParams{
		Name: "age", DisplayName: "Age", DataType: schemamodels.DataTypeInteger,
		ValidationRegex: `[0-9]+`,
	})
	s.Require().NoError(err)
	_, err = s.schemas.CreateAttributeMapping(ctx, person.ID, age.ID, schemaservice.MappingParams{SortOrder: 2})
	s.Require().NoError(err)

	email, err := s.schemas.CreateIdentifierType(ctx, schemaservice.CreateIdentifierTypeParams{
		Name: "email", DisplayName: "Email", DataType: schemamodels.DataTypeEmail,
		ValidationRegex: `[^@\s]+@[^@\s]+\.[a-z]{2,}`,
		Unique:          true, Searchable: true,
	})
	s.Require().NoError(err)
	s.emailTypeID = email.ID.String()
	_, err = s.schemas.CreateIdentifierMapping(ctx, person.ID, email.ID, schemaservice.MappingParams{PrimaryCandidate: true})
	s.Require().NoError(err)
}

func (s *IdentityHandlerSuite) TearDownTest() {
	s.server.Close()
}

func TestIdentityHandlerSuite(t *testing.T) {
	suite.Run(t, new(IdentityHandlerSuite))
}

func (s *IdentityHandlerSuite) do(method, path string, body any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *IdentityHandlerSuite) decode(resp *http.Response, v any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(v))
}

func (s *IdentityHandlerSuite) createIdentity() string {
	resp := s.do(http.MethodPost, "/identities", map[string]any{
		"identity_type_id": s.personID,
		"attributes":       map[string]string{"first_name": "Ada", "age": "36"},
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var detail struct {
		Identity struct {
			ID string `json:"id"`
		} `json:"identity"`
		Attributes map[string]string `json:"attributes"`
	}
	s.decode(resp, &detail)
	s.Equal("Ada", detail.Attributes["first_name"])
	return detail.Identity.ID
}

func (s *IdentityHandlerSuite) TestCreateAndGetIdentity() {
	id := s.createIdentity()

	resp := s.do(http.MethodGet, "/identities/"+id, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var detail struct {
		Identity struct {
			Status string `json:"status"`
		} `json:"identity"`
		Attributes map[string]string `json:"attributes"`
	}
	s.decode(resp, &detail)
	s.Equal("PENDING", detail.Identity.Status)
	s.Equal("36", detail.Attributes["age"])
}

func (s *IdentityHandlerSuite) TestValidationFailureReturns400WithFieldErrors() {
	resp := s.do(http.MethodPost, "/identities", map[string]any{
		"identity_type_id": s.personID,
		"attributes":       map[string]string{"age": "banana"},
	})
	s.Require().Equal(http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error       string `json:"error"`
		FieldErrors []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"field_errors"`
	}
	s.decode(resp, &body)
	s.Equal("validation", body.Error)
	s.Len(body.FieldErrors, 2, "missing first_name plus malformed age")
}

func (s *IdentityHandlerSuite) TestTypedValueRoundTrip() {
	id := s.createIdentity()

	resp := s.do(http.MethodPut, fmt.Sprintf("/identities/%s/attributes/age", id), map[string]string{"value": "37"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp = s.do(http.MethodGet, fmt.Sprintf("/identities/%s/attributes/age", id), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var body struct {
		DataType string `json:"data_type"`
		Kind     string `json:"kind"`
		Value    string `json:"value"`
	}
	s.decode(resp, &body)
	s.Equal("INTEGER", body.DataType)
	s.Equal("INTEGER", body.Kind)
	s.Equal("37", body.Value)
}

func (s *IdentityHandlerSuite) TestIdentifierLifecycleOverHTTP() {
	id := s.createIdentity()

	resp := s.do(http.MethodPost, fmt.Sprintf("/identities/%s/identifiers", id), map[string]any{
		"identifier_type_id": s.emailTypeID,
		"value":              "ada@example.com",
		"primary":            true,
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var ident struct {
		ID string `json:"id"`
	}
	s.decode(resp, &ident)

	// Duplicate unique value on a second identity conflicts.
	second := s.createIdentity()
	resp = s.do(http.MethodPost, fmt.Sprintf("/identities/%s/identifiers", second), map[string]any{
		"identifier_type_id": s.emailTypeID,
		"value":              "ada@example.com",
	})
	s.Require().Equal(http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = s.do(http.MethodGet, fmt.Sprintf("/identities/%s/identifiers/primary", id), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var primary struct {
		Value string `json:"value"`
	}
	s.decode(resp, &primary)
	s.Equal("ada@example.com", primary.Value)

	resp = s.do(http.MethodGet, "/identities/search?identifier=ada@example.com", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var found []struct {
		ID string `json:"id"`
	}
	s.decode(resp, &found)
	s.Require().Len(found, 1)
	s.Equal(id, found[0].ID)

	resp = s.do(http.MethodDelete, "/identifiers/"+ident.ID, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.do(http.MethodGet, fmt.Sprintf("/identities/%s/identifiers/primary", id), nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func (s *IdentityHandlerSuite) TestStatusTransitionOverHTTP() {
	id := s.createIdentity()

	resp := s.do(http.MethodPut, fmt.Sprintf("/identities/%s/status", id), map[string]string{"status": "active"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.do(http.MethodPut, fmt.Sprintf("/identities/%s/status", id), map[string]string{"status": "pending"})
	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode, "active cannot return to pending")
	resp.Body.Close()
}

func (s *IdentityHandlerSuite) TestUnknownIdentityReturns404() {
	resp := s.do(http.MethodGet, "/identities/6a2f41a3-c54c-fce8-32d2-0324e1c32e22", nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func (s *IdentityHandlerSuite) TestMalformedIDReturns400() {
	resp := s.do(http.MethodGet, "/identities/not-a-uuid", nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func (s *IdentityHandlerSuite) TestCreateByTypeNameAndRename() {
	resp := s.do(http.MethodPost, "/identities", map[string]any{
		"identity_type": "person",
		"display_name":  "Ada Lovelace",
		"status":        "active",
		"attributes":    map[string]string{"first_name": "Ada"},
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var detail struct {
		Identity struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
			Status      string `json:"status"`
		} `json:"identity"`
	}
	s.decode(resp, &detail)
	s.Equal("Ada Lovelace", detail.Identity.DisplayName)
	s.Equal("ACTIVE", detail.Identity.Status)

	resp = s.do(http.MethodPut, fmt.Sprintf("/identities/%s/display-name", detail.Identity.ID),
		map[string]string{"display_name": "Countess of Lovelace"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var renamed struct {
		DisplayName string `json:"display_name"`
	}
	s.decode(resp, &renamed)
	s.Equal("Countess of Lovelace", renamed.DisplayName)
}
