// Package handler exposes the schema registry's admin HTTP surface.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"identityshelf/internal/schema/models"
	"identityshelf/internal/schema/service"
	"identityshelf/pkg/domain"
	dErrors "identityshelf/pkg/domain-errors"
	"identityshelf/pkg/platform/httputil"
)

// Handler serves the schema registry admin API.
type Handler struct {
	svc *service.Service
}

// New constructs the schema Handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the schema admin routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/identity-types", func(r chi.Router) {
		r.Post("/", h.createIdentityType)
		r.Get("/", h.listIdentityTypes)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getIdentityType)
			r.Delete("/", h.deactivateIdentityType)
			r.Get("/schema", h.resolveSchema)
			r.Post("/validate", h.validate)
			r.Post("/attribute-mappings", h.createAttributeMapping)
			r.Post("/identifier-mappings", h.createIdentifierMapping)
		})
	})

	r.Route("/attribute-types", func(r chi.Router) {
		r.Post("/", h.createAttributeType)
		r.Get("/", h.listAttributeTypes)
		r.Get("/{id}", h.getAttributeType)
		r.Delete("/{id}", h.deactivateAttributeType)
	})

	r.Route("/identifier-types", func(r chi.Router) {
		r.Post("/", h.createIdentifierType)
		r.Get("/", h.listIdentifierTypes)
		r.Get("/{id}", h.getIdentifierType)
		r.Delete("/{id}", h.deactivateIdentifierType)
	})

	r.Route("/attribute-mappings/{id}", func(r chi.Router) {
		r.Put("/", h.updateAttributeMapping)
		r.Delete("/", h.removeAttributeMapping)
		r.Get("/effective-rules", h.attributeMappingEffectiveRules)
	})

	r.Route("/identifier-mappings/{id}", func(r chi.Router) {
		r.Put("/", h.updateIdentifierMapping)
		r.Delete("/", h.removeIdentifierMapping)
		r.Get("/effective-rules", h.identifierMappingEffectiveRules)
	})

	return r
}

// ---------------------------------------------------------------------------
// Identity types
// ---------------------------------------------------------------------------

type typeRequest struct {
	Name            string `json:"name"`
	DisplayName     string `json:"display_name"`
	Description     string `json:"description"`
	DataType        string `json:"data_type"`
	ValidationRegex string `json:"validation_regex"`
	DefaultValue    string `json:"default_value"`
	Unique          bool   `json:"unique"`
	Searchable      bool   `json:"searchable"`
}

func (h *Handler) createIdentityType(w http.ResponseWriter, r *http.Request) {
	var req typeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	t, err := h.svc.CreateIdentityType(r.Context(), req.Name, req.DisplayName, req.Description)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) listIdentityTypes(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListIdentityTypes(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) getIdentityType(w http.ResponseWriter, r *http.Request) {
	id, err := identityTypeID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := h.svc.GetIdentityType(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) deactivateIdentityType(w http.ResponseWriter, r *http.Request) {
	id, err := identityTypeID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := h.svc.DeactivateIdentityType(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

// ---------------------------------------------------------------------------
// Attribute and identifier types
// ---------------------------------------------------------------------------

func (h *Handler) createAttributeType(w http.ResponseWriter, r *http.Request) {
	var req typeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	dt, err := models.ParseDataType(req.DataType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := h.svc.CreateAttributeType(r.Context(), service.CreateAttributeTypeParams{
		Name:            req.Name,
		DisplayName:     req.DisplayName,
		Description:     req.Description,
		DataType:        dt,
		ValidationRegex: req.ValidationRegex,
		DefaultValue:    req.DefaultValue,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) listAttributeTypes(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListAttributeTypes(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) getAttributeType(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseAttributeTypeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, badID())
		return
	}
	t, err := h.svc.GetAttributeType(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) deactivateAttributeType(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseAttributeTypeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, badID())
		return
	}
	t, err := h.svc.DeactivateAttributeType(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) createIdentifierType(w http.ResponseWriter, r *http.Request) {
	var req typeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	dt, err := models.ParseDataType(req.DataType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := h.svc.CreateIdentifierType(r.Context(), service.CreateIdentifierTypeParams{
		Name:            req.Name,
		DisplayName:     req.DisplayName,
		Description:     req.Description,
		DataType:        dt,
		ValidationRegex: req.ValidationRegex,
		Unique:          req.Unique,
		Searchable:      req.Searchable,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) listIdentifierTypes(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListIdentifierTypes(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) getIdentifierType(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseIdentifierTypeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, badID())
		return
	}
	t, err := h.svc.GetIdentifierType(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) deactivateIdentifierType(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseIdentifierTypeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, badID())
		return
	}
	t, err := h.svc.DeactivateIdentifierType(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

// ---------------------------------------------------------------------------
// Mappings
// ---------------------------------------------------------------------------

type mappingRequest struct {
	AttributeTypeID         string `json:"attribute_type_id,omitempty"`
	IdentifierTypeID        string `json:"identifier_type_id,omitempty"`
	SortOrder               int    `json:"sort_order"`
	Required                bool   `json:"required"`
	PrimaryCandidate        bool   `json:"primary_candidate"`
	OverrideValidationRegex string `json:"override_validation_regex"`
	OverrideDefaultValue    string `json:"override_default_value"`
}

func (r mappingRequest) params() service.MappingParams {
	return service.MappingParams{
		SortOrder:               r.SortOrder,
		Required:                r.Required,
		PrimaryCandidate:        r.PrimaryCandidate,
		OverrideValidationRegex: r.OverrideValidationRegex,
		OverrideDefaultValue:    r.OverrideDefaultValue,
	}
}

func (h *Handler) createAttributeMapping(w http.ResponseWriter, r *http.Request) {
	identityTypeID, err := identityTypeID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	attributeTypeID, err := domain.ParseAttributeTypeID(req.AttributeTypeID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid attribute_type_id"))
		return
	}
	m, err := h.svc.CreateAttributeMapping(r.Context(), identityTypeID, attributeTypeID, req.params())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) createIdentifierMapping(w http.ResponseWriter, r *http.Request) {
	identityTypeID, err := identityTypeID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	identifierTypeID, err := domain.ParseIdentifierTypeID(req.IdentifierTypeID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid identifier_type_id"))
		return
	}
	m, err := h.svc.CreateIdentifierMapping(r.Context(), identityTypeID, identifierTypeID, req.params())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) updateAttributeMapping(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseAttributeMappingID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, badID())
		return
	}
	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	m, err := h.svc.UpdateAttributeMapping(r.Context(), id, req.params())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

// removeAttributeMapping deactivates the mapping; ?permanent=true hard-deletes.
func (h *Handler) removeAttributeMapping(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseAttributeMappingID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, badID())
		return
	}
	if r.URL.Query().Get("permanent") == "true" {
		err = h.svc.DeleteAttributeMappingPermanently(r.Context(), id)
	} else {
		err = h.svc.DeactivateAttributeMapping(r.Context(), id)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateIdentifierMapping(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseIdentifierMappingID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, badID())
		return
	}
	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	m, err := h.svc.UpdateIdentifierMapping(r.Context(), id, req.params())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

// removeIdentifierMapping deactivates the mapping; ?permanent=true hard-deletes.
func (h *Handler) removeIdentifierMapping(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseIdentifierMappingID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, badID())
		return
	}
	if r.URL.Query().Get("permanent") == "true" {
		err = h.svc.DeleteIdentifierMappingPermanently(r.Context(), id)
	} else {
		err = h.svc.DeactivateIdentifierMapping(r.Context(), id)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) attributeMappingEffectiveRules(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseAttributeMappingID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, badID())
		return
	}
	rules, err := h.svc.AttributeMappingEffectiveRules(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rules)
}

func (h *Handler) identifierMappingEffectiveRules(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseIdentifierMappingID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, badID())
		return
	}
	rules, err := h.svc.IdentifierMappingEffectiveRules(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rules)
}

// ---------------------------------------------------------------------------
// Resolution and validation
// ---------------------------------------------------------------------------

func (h *Handler) resolveSchema(w http.ResponseWriter, r *http.Request) {
	id, err := identityTypeID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	schema, err := h.svc.ResolveSchema(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, schema)
}

type validateRequest struct {
	Fields map[string]*string `json:"fields"`
}

type validateResponse struct {
	Valid       bool                 `json:"valid"`
	FieldErrors []dErrors.FieldError `json:"field_errors,omitempty"`
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	id, err := identityTypeID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	fieldErrs, err := h.svc.Validate(r.Context(), id, req.Fields)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, validateResponse{
		Valid:       len(fieldErrs) == 0,
		FieldErrors: fieldErrs,
	})
}

// ---------------------------------------------------------------------------

func identityTypeID(r *http.Request) (domain.IdentityTypeID, error) {
	id, err := domain.ParseIdentityTypeID(chi.URLParam(r, "id"))
	if err != nil {
		return domain.IdentityTypeID{}, badID()
	}
	return id, nil
}

func badID() error {
	return dErrors.New(dErrors.CodeBadRequest, "invalid id")
}
