package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/auth"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/service"
)

// OwnerHandler serves the signed-in owner's own profile and links. Every
// route runs behind auth.RequireAuth and acts on the caller's uid only; ids
// of other owners' links are simply not found.
type OwnerHandler struct {
	resolver *service.Resolver
	profiles *service.ProfileService
	links    *service.LinkService
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewOwnerHandler creates an OwnerHandler.
func NewOwnerHandler(
	resolver *service.Resolver,
	profiles *service.ProfileService,
	links *service.LinkService,
	accounts *service.AccountService,
	logger *slog.Logger,
) *OwnerHandler {
	return &OwnerHandler{
		resolver: resolver,
		profiles: profiles,
		links:    links,
		accounts: accounts,
		logger:   logger,
	}
}

// profilePatch is the body of a profile update. Absent fields are left
// alone. "contactsOrder": [] resets to the default order.
type profilePatch struct {
	DisplayName   *string           `json:"displayName"`
	Bio           *string           `json:"bio"`
	Location      *string           `json:"location"`
	Photo         *string           `json:"photo"`
	Contacts      map[string]string `json:"contacts"`
	ContactsOrder *[]string         `json:"contactsOrder"`
}

func (p profilePatch) update() model.ProfileUpdate {
	u := model.ProfileUpdate{
		DisplayName: p.DisplayName,
		Bio:         p.Bio,
		Location:    p.Location,
		Photo:       p.Photo,
	}
	if p.Contacts != nil {
		u.Contacts = make(map[model.Channel]string, len(p.Contacts))
		for k, v := range p.Contacts {
			u.Contacts[model.Channel(k)] = v
		}
	}
	if p.ContactsOrder != nil {
		u.ContactsOrder = *p.ContactsOrder
		if u.ContactsOrder == nil {
			u.ContactsOrder = []string{}
		}
	}
	return u
}

// linkPatch is the body of a link update and of one batch entry.
type linkPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
	Icon        *string `json:"icon"`
	Order       *int64  `json:"order"`
}

func (p linkPatch) update() model.LinkUpdate {
	return model.LinkUpdate{
		Title:       p.Title,
		Description: p.Description,
		URL:         p.URL,
		Icon:        p.Icon,
		Order:       p.Order,
	}
}

type batchEntry struct {
	ID     string `json:"id"`
	Delete bool   `json:"delete"`
	linkPatch
}

type batchRequest struct {
	Entries []batchEntry `json:"entries"`
}

type usernameRequest struct {
	Username string `json:"username"`
}

// callerUID returns the uid RequireAuth stored in the context.
func callerUID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := auth.UIDFromContext(r.Context())
	if !ok {
		writeError(w, r, apperror.Unauthorized("valid authentication required"))
	}
	return uid, ok
}

// HandleMe returns the caller's profile and links for editing.
//
// HTTP: GET /api/me
func (h *OwnerHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerUID(w, r)
	if !ok {
		return
	}
	res, err := h.resolver.ResolvePrivate(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, privateResponse(res))
}

// HandleUpdateProfile applies a partial profile update.
//
// HTTP: PATCH /api/me/profile
// REQUEST BODY: {"bio": "...", "contacts": {"github": "alexdev"}, "contactsOrder": ["github"]}
func (h *OwnerHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerUID(w, r)
	if !ok {
		return
	}
	var patch profilePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.profiles.Update(r.Context(), uid, patch.update())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleChangeUsername moves the caller to a new username and frees the old.
//
// HTTP: PUT /api/me/username
// REQUEST BODY: {"username": "new_name"}
func (h *OwnerHandler) HandleChangeUsername(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerUID(w, r)
	if !ok {
		return
	}
	var req usernameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.accounts.ChangeUsername(r.Context(), uid, req.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleListLinks returns the caller's links in display order.
//
// HTTP: GET /api/me/links
func (h *OwnerHandler) HandleListLinks(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerUID(w, r)
	if !ok {
		return
	}
	links, err := h.links.List(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, linkViews(links))
}

// HandleCreateLink appends a link to the caller's collection.
//
// HTTP: POST /api/me/links
// REQUEST BODY: {"title": "Portfolio", "url": "example.com", "icon": "globe"}
func (h *OwnerHandler) HandleCreateLink(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerUID(w, r)
	if !ok {
		return
	}
	var in model.LinkInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	l, err := h.links.Add(r.Context(), uid, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, linkView{Link: *l, Href: l.Href()})
}

// HandleUpdateLink applies a partial update to one of the caller's links.
//
// HTTP: PATCH /api/me/links/{id}
func (h *OwnerHandler) HandleUpdateLink(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerUID(w, r)
	if !ok {
		return
	}
	var patch linkPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	l, err := h.links.Update(r.Context(), uid, chi.URLParam(r, "id"), patch.update())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, linkView{Link: *l, Href: l.Href()})
}

// HandleDeleteLink removes one of the caller's links. Deleting a link that
// is already gone also succeeds.
//
// HTTP: DELETE /api/me/links/{id}
func (h *OwnerHandler) HandleDeleteLink(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerUID(w, r)
	if !ok {
		return
	}
	if _, err := h.links.Remove(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleBatch applies several link edits and deletions in one request. Each
// entry succeeds or fails on its own; the response lists one result per
// entry, in request order.
//
// HTTP: POST /api/me/links/batch
// REQUEST BODY: {"entries": [{"id": "...", "order": 3}, {"id": "...", "delete": true}]}
func (h *OwnerHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerUID(w, r)
	if !ok {
		return
	}
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ops := make([]service.BatchOp, len(req.Entries))
	for i, e := range req.Entries {
		ops[i] = service.BatchOp{ID: e.ID, Delete: e.Delete, Update: e.update()}
	}
	results, err := h.links.BulkSave(r.Context(), uid, ops)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
