package handler

import (
	"time"

	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/service"
)

// linkView is a link as rendered: the stored URL plus the scheme-normalized
// href to navigate to.
type linkView struct {
	model.Link
	Href string `json:"href"`
}

func linkViews(links []model.Link) []linkView {
	out := make([]linkView, len(links))
	for i, l := range links {
		out[i] = linkView{Link: l, Href: l.Href()}
	}
	return out
}

// publicLink is a link as shown to visitors: no click count, sort key or
// timestamps.
type publicLink struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Icon        model.Icon `json:"icon"`
	Href        string     `json:"href"`
}

func publicLinks(links []model.Link) []publicLink {
	out := make([]publicLink, len(links))
	for i, l := range links {
		out[i] = publicLink{
			ID:          l.ID,
			Title:       l.Title,
			Description: l.Description,
			Icon:        l.Icon,
			Href:        l.Href(),
		}
	}
	return out
}

// publicProfile omits the owner's uid and sign-in provider.
type publicProfile struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
	Location    string `json:"location"`
	Photo       string `json:"photo"`
}

// directoryResponse is the body of a profile page read.
type directoryResponse struct {
	Profile  any                  `json:"profile"`
	Contacts []model.ContactEntry `json:"contacts"`
	Links    any                  `json:"links"`
	Partial  bool                 `json:"partial"`
	Owner    bool                 `json:"owner"`
}

func publicResponse(res *service.Resolution, owner bool) directoryResponse {
	p := res.Profile
	return directoryResponse{
		Profile: publicProfile{
			Username:    res.Username,
			DisplayName: p.DisplayName,
			Bio:         p.Bio,
			Location:    p.Location,
			Photo:       p.Photo,
		},
		Contacts: res.Contacts,
		Links:    publicLinks(res.Links),
		Partial:  res.Partial,
		Owner:    owner,
	}
}

func privateResponse(res *service.Resolution) directoryResponse {
	return directoryResponse{
		Profile:  res.Profile,
		Contacts: res.Contacts,
		Links:    linkViews(res.Links),
		Partial:  res.Partial,
		Owner:    true,
	}
}

// sessionResponse is returned by register and login.
type sessionResponse struct {
	Profile   *model.Profile `json:"profile"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Created   bool           `json:"created"`
}
