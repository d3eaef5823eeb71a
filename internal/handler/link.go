package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/linkshelf/internal/model"
	"github.com/dukerupert/linkshelf/internal/response"
	"github.com/dukerupert/linkshelf/internal/store"
	"github.com/dukerupert/linkshelf/internal/websocket"
)

type LinkHandler struct {
	userStore  *store.UserStore
	groupStore *store.GroupStore
	linkStore  *store.LinkStore
	cacheStore *store.CacheStore
	logger     *slog.Logger
	notifier
}

func NewLinkHandler(
	us *store.UserStore,
	gs *store.GroupStore,
	ls *store.LinkStore,
	cs *store.CacheStore,
	hub *websocket.Hub,
	logger *slog.Logger,
) *LinkHandler {
	return &LinkHandler{
		userStore:  us,
		groupStore: gs,
		linkStore:  ls,
		cacheStore: cs,
		logger:     logger,
		notifier:   notifier{hub: hub},
	}
}

// groupFromPath resolves the caller and the {id} group they own.
func (h *LinkHandler) groupFromPath(w http.ResponseWriter, r *http.Request) (*model.User, *model.LinkGroup, bool) {
	user, ok := resolveCaller(w, r, h.userStore, h.logger)
	if !ok {
		return nil, nil, false
	}
	id, ok := pathID(w, r)
	if !ok {
		return nil, nil, false
	}
	g, err := ownedGroup(r, h.groupStore, user, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, nil, false
	}
	return user, g, true
}

// linkFromPath resolves the caller and the {id} link, checking the caller
// owns the link's group.
func (h *LinkHandler) linkFromPath(w http.ResponseWriter, r *http.Request) (*model.User, *model.Link, bool) {
	user, ok := resolveCaller(w, r, h.userStore, h.logger)
	if !ok {
		return nil, nil, false
	}
	id, ok := pathID(w, r)
	if !ok {
		return nil, nil, false
	}
	l, err := h.linkStore.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, nil, false
	}
	if _, err := ownedGroup(r, h.groupStore, user, l.GroupID); err != nil {
		writeError(w, r, h.logger, err)
		return nil, nil, false
	}
	return user, l, true
}

func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	_, g, ok := h.groupFromPath(w, r)
	if !ok {
		return
	}
	links, err := h.linkStore.ListByGroup(r.Context(), g.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, links)
}

func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, g, ok := h.groupFromPath(w, r)
	if !ok {
		return
	}

	var req linkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := req.params()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	l, err := h.linkStore.Create(r.Context(), g.ID, p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.publish(user.Username, websocket.NewMessage("link", "created", l.ID, map[string]any{"group_id": g.ID}))
	response.OK(w, l)
}

func (h *LinkHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, l, ok := h.linkFromPath(w, r)
	if !ok {
		return
	}
	response.OK(w, l)
}

func (h *LinkHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, l, ok := h.linkFromPath(w, r)
	if !ok {
		return
	}

	var req linkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := req.params()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	updated, err := h.linkStore.Update(r.Context(), l.ID, p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !updated {
		response.Fail(w, response.NotFound, "")
		return
	}
	l, err = h.linkStore.GetByID(r.Context(), l.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.publish(user.Username, websocket.NewMessage("link", "updated", l.ID, map[string]any{"group_id": l.GroupID}))
	response.OK(w, l)
}

func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, l, ok := h.linkFromPath(w, r)
	if !ok {
		return
	}

	if _, err := h.linkStore.Delete(r.Context(), l.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.publish(user.Username, websocket.NewMessage("link", "deleted", l.ID, map[string]any{"group_id": l.GroupID}))
	response.OK(w, nil)
}

// WriteCache stores content as the link's cache with the same
// replace-on-write rules as groups.
func (h *LinkHandler) WriteCache(w http.ResponseWriter, r *http.Request) {
	user, l, ok := h.linkFromPath(w, r)
	if !ok {
		return
	}

	var req cacheRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	content, err := req.content()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	entry, err := h.cacheStore.WriteLinkCache(r.Context(), l.ID, content)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.publish(user.Username, websocket.NewMessage("link", "cache_updated", l.ID, map[string]any{
		"cache_id": entry.ID,
		"group_id": l.GroupID,
	}))
	response.OK(w, entry)
}
