package handler

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/linkshelf/internal/model"
	"github.com/dukerupert/linkshelf/internal/render"
	"github.com/dukerupert/linkshelf/internal/response"
	"github.com/dukerupert/linkshelf/internal/store"
)

type PublicHandler struct {
	groupStore *store.GroupStore
	linkStore  *store.LinkStore
	cacheStore *store.CacheStore
	renderer   *render.Renderer
	logger     *slog.Logger
}

func NewPublicHandler(gs *store.GroupStore, ls *store.LinkStore, cs *store.CacheStore, renderer *render.Renderer, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{
		groupStore: gs,
		linkStore:  ls,
		cacheStore: cs,
		renderer:   renderer,
		logger:     logger,
	}
}

// publicGroup is the listing view of a group; it never carries the key.
type publicGroup struct {
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type publicLink struct {
	ID      int64   `json:"id"`
	GroupID int64   `json:"group_id"`
	Type    string  `json:"type"`
	URL     string  `json:"url"`
	Name    *string `json:"name,omitempty"`
	Content *string `json:"content,omitempty"`
}

func (h *PublicHandler) Groups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groupStore.ListPublic(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]publicGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, publicGroup{Name: g.Name, Slug: g.Slug, Description: g.Description, CreatedAt: g.CreatedAt})
	}
	response.OK(w, out)
}

func (h *PublicHandler) Links(w http.ResponseWriter, r *http.Request) {
	links, err := h.linkStore.ListPublic(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]publicLink, 0, len(links))
	for _, l := range links {
		out = append(out, publicLink{ID: l.ID, GroupID: l.GroupID, Type: l.Type, URL: l.URL, Name: l.Name, Content: l.Content})
	}
	response.OK(w, out)
}

// visible reports whether g may be shown to a visitor presenting key.
func visible(g *model.LinkGroup, key string) bool {
	if g.IsPublic {
		return true
	}
	if g.AccessKey == nil || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*g.AccessKey), []byte(key)) == 1
}

// Page serves the rendered group page for /g/{slug}. Private groups answer
// 404 unless ?key= matches, so their existence is not revealed.
func (h *PublicHandler) Page(w http.ResponseWriter, r *http.Request) {
	g, err := h.groupStore.GetBySlug(r.Context(), r.PathValue("slug"))
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("load group page", "slug", r.PathValue("slug"), "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if !visible(g, r.URL.Query().Get("key")) {
		http.NotFound(w, r)
		return
	}

	page, err := h.page(r, g)
	if err != nil {
		h.logger.Error("render group page", "group_id", g.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; img-src *")
	w.Write([]byte(page))
}

// page returns the group's cached page, rendering one when no cache exists
// or it cannot be read.
func (h *PublicHandler) page(r *http.Request, g *model.LinkGroup) (string, error) {
	entry, err := h.cacheStore.GetGroupCache(r.Context(), g.ID)
	if err == nil {
		return entry.Content, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		h.logger.Warn("group cache unavailable, rendering", "group_id", g.ID, "error", err)
	}

	d, err := h.groupStore.Details(r.Context(), g.ID)
	if err != nil {
		return "", err
	}
	return h.renderer.GroupPage(d.Group, d.Links)
}
