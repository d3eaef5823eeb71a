package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/linkshelf/internal/model"
	"github.com/dukerupert/linkshelf/internal/response"
	"github.com/dukerupert/linkshelf/internal/store"
	"github.com/dukerupert/linkshelf/internal/websocket"
)

// GroupRefresher re-renders a group's cache on demand.
type GroupRefresher interface {
	RefreshGroup(ctx context.Context, groupID int64) (*model.CacheEntry, error)
}

type GroupHandler struct {
	userStore  *store.UserStore
	groupStore *store.GroupStore
	cacheStore *store.CacheStore
	refresher  GroupRefresher
	logger     *slog.Logger
	notifier
}

func NewGroupHandler(
	us *store.UserStore,
	gs *store.GroupStore,
	cs *store.CacheStore,
	refresher GroupRefresher,
	hub *websocket.Hub,
	logger *slog.Logger,
) *GroupHandler {
	return &GroupHandler{
		userStore:  us,
		groupStore: gs,
		cacheStore: cs,
		refresher:  refresher,
		notifier:   notifier{hub: hub},
		logger:     logger,
	}
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := resolveCaller(w, r, h.userStore, h.logger)
	if !ok {
		return
	}
	groups, err := h.groupStore.ListByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, groups)
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := resolveCaller(w, r, h.userStore, h.logger)
	if !ok {
		return
	}

	var req groupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := req.params()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	g, err := h.groupStore.Create(r.Context(), user.ID, p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.publish(user.Username, websocket.NewMessage("group", "created", g.ID, nil))
	response.OK(w, g)
}

// load resolves the caller and the {id} group they own. Any failure has
// already been answered when ok is false.
func (h *GroupHandler) load(w http.ResponseWriter, r *http.Request) (*model.User, *model.LinkGroup, bool) {
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

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, g, ok := h.load(w, r)
	if !ok {
		return
	}
	response.OK(w, g)
}

func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, g, ok := h.load(w, r)
	if !ok {
		return
	}

	var req groupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	p, err := req.params()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	updated, err := h.groupStore.Update(r.Context(), g.ID, p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !updated {
		response.Fail(w, response.NotFound, "")
		return
	}
	g, err = h.groupStore.GetByID(r.Context(), g.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.publish(user.Username, websocket.NewMessage("group", "updated", g.ID, nil))
	response.OK(w, g)
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, g, ok := h.load(w, r)
	if !ok {
		return
	}

	if _, err := h.groupStore.Delete(r.Context(), g.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.publish(user.Username, websocket.NewMessage("group", "deleted", g.ID, nil))
	response.OK(w, nil)
}

// Details returns the group with its links and cache. Missing caches are
// reported as null rather than failing the request.
func (h *GroupHandler) Details(w http.ResponseWriter, r *http.Request) {
	_, g, ok := h.load(w, r)
	if !ok {
		return
	}
	d, err := h.groupStore.Details(r.Context(), g.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, d)
}

type cacheRequest struct {
	Content *string `json:"content"`
}

func (req cacheRequest) content() (string, error) {
	if req.Content == nil {
		return "", response.Invalid("content", "is required")
	}
	return *req.Content, nil
}

// WriteCache stores content as the group's cache, rewriting the current
// entry or creating and associating a new one.
func (h *GroupHandler) WriteCache(w http.ResponseWriter, r *http.Request) {
	user, g, ok := h.load(w, r)
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

	entry, err := h.cacheStore.WriteGroupCache(r.Context(), g.ID, content)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.publish(user.Username, websocket.NewMessage("group", "cache_updated", g.ID, map[string]any{
		"cache_id": entry.ID,
	}))
	response.OK(w, entry)
}

func (h *GroupHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	_, g, ok := h.load(w, r)
	if !ok {
		return
	}
	entry, err := h.refresher.RefreshGroup(r.Context(), g.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.OK(w, entry)
}
