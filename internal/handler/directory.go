package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/linkbio/internal/auth"
	"github.com/sakif/linkbio/internal/service"
)

// DirectoryHandler serves the public read surface: profile pages by
// username, link click-through and username availability.
type DirectoryHandler struct {
	resolver *service.Resolver
	registry *service.Registry
	links    *service.LinkService
	logger   *slog.Logger
}

// NewDirectoryHandler creates a DirectoryHandler.
func NewDirectoryHandler(
	resolver *service.Resolver,
	registry *service.Registry,
	links *service.LinkService,
	logger *slog.Logger,
) *DirectoryHandler {
	return &DirectoryHandler{resolver: resolver, registry: registry, links: links, logger: logger}
}

// HandleResolve returns the profile, contacts and links behind a username.
// Owner is set when the caller is signed in as that profile's uid.
//
// HTTP: GET /api/u/{username}
func (h *DirectoryHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	res, err := h.resolver.ResolvePublic(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	uid, _ := auth.UIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, publicResponse(res, uid != "" && uid == res.UID))
}

// HandleClick counts a visit to a link and redirects to its href.
//
// HTTP: GET /u/{username}/links/{id}
func (h *DirectoryHandler) HandleClick(w http.ResponseWriter, r *http.Request) {
	uid, err := h.registry.Resolve(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	l, err := h.links.Click(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, l.Href(), http.StatusFound)
}

// HandleAvailability reports whether a username can be reserved.
//
// HTTP: GET /api/usernames/{username}
func (h *DirectoryHandler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	name := service.NormalizeUsername(chi.URLParam(r, "username"))
	available, err := h.registry.IsAvailable(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"username": name, "available": available})
}
