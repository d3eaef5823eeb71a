// Package handler implements the linkshelf HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/linkshelf/internal/auth"
	"github.com/dukerupert/linkshelf/internal/middleware"
	"github.com/dukerupert/linkshelf/internal/model"
	"github.com/dukerupert/linkshelf/internal/response"
	"github.com/dukerupert/linkshelf/internal/store"
	"github.com/dukerupert/linkshelf/internal/websocket"
)

const maxBodyBytes = 1 << 20

var errNotOwner = errors.New("not the owner")

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// pathID parses the {id} path value, answering BadRequest itself when it
// is not a number.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		response.Fail(w, response.BadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return response.Invalid("", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

// writeError answers with the envelope matching err. Server-side failures
// are logged with the request they broke.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if errors.Is(err, errNotOwner) {
		response.Fail(w, response.Forbidden, "")
		return
	}
	if code, _ := response.FromError(err); code == response.ServerError {
		logger.Error("request failed",
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	response.Error(w, err)
}

// caller loads the user behind the request's session. A session that
// outlived its user is treated as unauthenticated.
func caller(r *http.Request, users *store.UserStore) (*model.User, error) {
	username := auth.Username(r.Context())
	if username == "" {
		return nil, errUnauthenticated
	}
	u, err := users.GetByUsername(r.Context(), username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errUnauthenticated
	}
	return u, err
}

var errUnauthenticated = errors.New("unauthenticated")

// resolveCaller is caller with the error already answered.
func resolveCaller(w http.ResponseWriter, r *http.Request, users *store.UserStore, logger *slog.Logger) (*model.User, bool) {
	u, err := caller(r, users)
	if errors.Is(err, errUnauthenticated) {
		response.Fail(w, response.Unauthorized, "")
		return nil, false
	}
	if err != nil {
		writeError(w, r, logger, err)
		return nil, false
	}
	return u, true
}

// ownedGroup loads group id and checks it belongs to user.
func ownedGroup(r *http.Request, groups *store.GroupStore, user *model.User, id int64) (*model.LinkGroup, error) {
	g, err := groups.GetByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if g.UserID != user.ID {
		return nil, errNotOwner
	}
	return g, nil
}

type notifier struct {
	hub *websocket.Hub
}

func (n notifier) publish(username string, msg websocket.Message) {
	if n.hub != nil {
		n.hub.Publish(username, msg)
	}
}
