// Package handler exposes the identity HTTP surface.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"identityshelf/internal/identity/models"
	"identityshelf/internal/identity/service"
	"identityshelf/pkg/domain"
	dErrors "identityshelf/pkg/domain-errors"
	"identityshelf/pkg/platform/httputil"
)

// Handler serves the identity API.
type Handler struct {
	svc *service.Service
}

// New constructs the identity Handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the identity routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/identities", func(r chi.Router) {
		r.Post("/", h.createIdentity)
		r.Get("/", h.listIdentities)
		r.Get("/search", h.searchIdentities)
		r.Get("/suggest", h.suggestIdentities)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getIdentity)
			r.Delete("/", h.deleteIdentity)
			r.Patch("/attributes", h.updateAttributes)
			r.Put("/display-name", h.renameIdentity)
			r.Put("/status", h.changeStatus)
			r.Get("/attributes/{name}", h.getTypedValue)
			r.Put("/attributes/{name}", h.setTypedValue)
			r.Post("/identifiers", h.addIdentifier)
			r.Get("/identifiers", h.listIdentifiers)
			r.Get("/identifiers/primary", h.getPrimaryIdentifier)
		})
	})

	r.Route("/identifiers/{id}", func(r chi.Router) {
		r.Put("/value", h.updateIdentifierValue)
		r.Post("/verify", h.verifyIdentifier)
		r.Post("/primary", h.setPrimaryIdentifier)
		r.Delete("/", h.deactivateIdentifier)
	})

	return r
}

// ---------------------------------------------------------------------------
// Identities
// ---------------------------------------------------------------------------

type createIdentityRequest struct {
	IdentityTypeID   string             `json:"identity_type_id,omitempty"`
	IdentityTypeName string             `json:"identity_type,omitempty"`
	DisplayName      string             `json:"display_name,omitempty"`
	Status           string             `json:"status,omitempty"`
	Attributes       map[string]*string `json:"attributes"`
}

func (h *Handler) createIdentity(w http.ResponseWriter, r *http.Request) {
	var req createIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	p := service.CreateIdentityParams{
		IdentityTypeName: req.IdentityTypeName,
		DisplayName:      req.DisplayName,
		Attributes:       req.Attributes,
	}
	if req.IdentityTypeName == "" {
		typeID, err := domain.ParseIdentityTypeID(req.IdentityTypeID)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid identity_type_id"))
			return
		}
		p.IdentityTypeID = typeID
	}
	if req.Status != "" {
		status, err := models.ParseStatus(req.Status)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		p.Status = status
	}
	detail, err := h.svc.CreateIdentity(r.Context(), p)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, detail)
}

func (h *Handler) listIdentities(w http.ResponseWriter, r *http.Request) {
	var f service.IdentityFilter
	q := r.URL.Query()
	if raw := q.Get("identity_type_id"); raw != "" {
		id, err := domain.ParseIdentityTypeID(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid identity_type_id"))
			return
		}
		f.IdentityTypeID = id
	}
	if raw := q.Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		f.Status = status
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	list, err := h.svc.ListIdentities(r.Context(), f)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) getIdentity(w http.ResponseWriter, r *http.Request) {
	id, err := identityID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	detail, err := h.svc.GetIdentity(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) deleteIdentity(w http.ResponseWriter, r *http.Request) {
	id, err := identityID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.DeleteIdentity(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateAttributesRequest struct {
	Attributes map[string]*string `json:"attributes"`
}

func (h *Handler) updateAttributes(w http.ResponseWriter, r *http.Request) {
	id, err := identityID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req updateAttributesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	detail, err := h.svc.UpdateAttributes(r.Context(), id, req.Attributes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

type renameIdentityRequest struct {
	DisplayName string `json:"display_name"`
}

func (h *Handler) renameIdentity(w http.ResponseWriter, r *http.Request) {
	id, err := identityID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req renameIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	identity, err := h.svc.Rename(r.Context(), id, req.DisplayName)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identity)
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := identityID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	identity, err := h.svc.ChangeStatus(r.Context(), id, status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identity)
}

// ---------------------------------------------------------------------------
// Typed values
// ---------------------------------------------------------------------------

type typedValueResponse struct {
	Attribute string `json:"attribute"`
	DataType  string `json:"data_type"`
	Kind      string `json:"kind"`
	Value     string `json:"value,omitempty"`
}

func typedValue(rec *models.AttributeValueRecord) typedValueResponse {
	return typedValueResponse{
		Attribute: rec.AttributeName,
		DataType:  string(rec.DataType),
		Kind:      string(rec.Value.Kind()),
		Value:     rec.Value.String(),
	}
}

func (h *Handler) getTypedValue(w http.ResponseWriter, r *http.Request) {
	id, err := identityID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.svc.GetTypedValue(r.Context(), id, chi.URLParam(r, "name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, typedValue(rec))
}

type setTypedValueRequest struct {
	Value string `json:"value"`
}

func (h *Handler) setTypedValue(w http.ResponseWriter, r *http.Request) {
	id, err := identityID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req setTypedValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	rec, err := h.svc.SetTypedValue(r.Context(), id, chi.URLParam(r, "name"), req.Value)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, typedValue(rec))
}

// ---------------------------------------------------------------------------
// Identifiers
// ---------------------------------------------------------------------------

type addIdentifierRequest struct {
	IdentifierTypeID string `json:"identifier_type_id"`
	Value            string `json:"value"`
	Primary          bool   `json:"primary"`
}

func (h *Handler) addIdentifier(w http.ResponseWriter, r *http.Request) {
	id, err := identityID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req addIdentifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	typeID, err := domain.ParseIdentifierTypeID(req.IdentifierTypeID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid identifier_type_id"))
		return
	}
	identifier, err := h.svc.AddIdentifier(r.Context(), id, service.AddIdentifierParams{
		IdentifierTypeID: typeID,
		Value:            req.Value,
		Primary:          req.Primary,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, identifier)
}

func (h *Handler) listIdentifiers(w http.ResponseWriter, r *http.Request) {
	id, err := identityID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.svc.ListIdentifiers(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) getPrimaryIdentifier(w http.ResponseWriter, r *http.Request) {
	id, err := identityID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	identifier, err := h.svc.GetPrimaryIdentifier(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identifier)
}

type updateIdentifierValueRequest struct {
	Value string `json:"value"`
}

func (h *Handler) updateIdentifierValue(w http.ResponseWriter, r *http.Request) {
	id, err := identifierID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req updateIdentifierValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	identifier, err := h.svc.UpdateIdentifierValue(r.Context(), id, req.Value)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identifier)
}

func (h *Handler) verifyIdentifier(w http.ResponseWriter, r *http.Request) {
	id, err := identifierID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	identifier, err := h.svc.VerifyIdentifier(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identifier)
}

func (h *Handler) setPrimaryIdentifier(w http.ResponseWriter, r *http.Request) {
	id, err := identifierID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	identifier, err := h.svc.SetPrimaryIdentifier(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identifier)
}

func (h *Handler) deactivateIdentifier(w http.ResponseWriter, r *http.Request) {
	id, err := identifierID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	identifier, err := h.svc.DeactivateIdentifier(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, identifier)
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

func (h *Handler) searchIdentities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	list, err := h.svc.SearchByIdentifier(r.Context(), q.Get("identifier"), q.Get("type"), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) suggestIdentities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	list, err := h.svc.SuggestByIdentifier(r.Context(), q.Get("prefix"), q.Get("type"), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

// ---------------------------------------------------------------------------

func identityID(r *http.Request) (domain.IdentityID, error) {
	id, err := domain.ParseIdentityID(chi.URLParam(r, "id"))
	if err != nil {
		return domain.IdentityID{}, dErrors.New(dErrors.CodeBadRequest, "invalid id")
	}
	return id, nil
}

func identifierID(r *http.Request) (domain.IdentifierID, error) {
	id, err := domain.ParseIdentifierID(chi.URLParam(r, "id"))
	if err != nil {
		return domain.IdentifierID{}, dErrors.New(dErrors.CodeBadRequest, "invalid id")
	}
	return id, nil
}
