package handler

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/dukerupert/linkshelf/internal/model"
	"github.com/dukerupert/linkshelf/internal/response"
	"github.com/dukerupert/linkshelf/internal/store"
)

const (
	maxSlugLen = 64
	maxNameLen = 200
)

var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Slugs that collide with routes or with the groups created by migrations.
var reservedSlugs = map[string]bool{
	"api":    true,
	"g":      true,
	"ws":     true,
	"health": true,
	"new":    true,
}

func validateUsername(name string) error {
	if problem := model.UsernameProblem(name); problem != "" {
		return response.Invalid("username", problem)
	}
	return nil
}

func validateSlug(slug string) error {
	switch {
	case slug == "":
		return response.Invalid("slug", "is required")
	case len(slug) > maxSlugLen:
		return response.Invalid("slug", "is too long")
	case !slugPattern.MatchString(slug):
		return response.Invalid("slug", "may only contain letters, digits, '-' and '_'")
	case reservedSlugs[strings.ToLower(slug)], strings.HasPrefix(strings.ToLower(slug), "unsorted-"):
		return response.Invalid("slug", "is reserved")
	}
	return nil
}

type groupRequest struct {
	Name            string  `json:"name"`
	Slug            string  `json:"slug"`
	Key             *string `json:"key"`
	Description     *string `json:"description"`
	IsPublic        bool    `json:"is_public"`
	RefreshInterval int     `json:"refresh_interval"`
}

func (req *groupRequest) params() (store.GroupParams, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.TrimSpace(req.Slug)
	switch {
	case req.Name == "":
		return store.GroupParams{}, response.Invalid("name", "is required")
	case len(req.Name) > maxNameLen:
		return store.GroupParams{}, response.Invalid("name", "is too long")
	case req.RefreshInterval < 0:
		return store.GroupParams{}, response.Invalid("refresh_interval", "must not be negative")
	}
	if err := validateSlug(req.Slug); err != nil {
		return store.GroupParams{}, err
	}
	if req.Key != nil && *req.Key == "" {
		req.Key = nil
	}
	return store.GroupParams{
		Name:            req.Name,
		Slug:            req.Slug,
		AccessKey:       req.Key,
		Description:     req.Description,
		IsPublic:        req.IsPublic,
		RefreshInterval: req.RefreshInterval,
	}, nil
}

type linkRequest struct {
	Type    string  `json:"type"`
	URL     string  `json:"url"`
	Name    *string `json:"name"`
	Content *string `json:"content"`
}

func (req *linkRequest) params() (store.LinkParams, error) {
	if req.Type == "" {
		req.Type = model.LinkTypeLink
	}
	if !model.LinkTypes[req.Type] {
		return store.LinkParams{}, response.Invalid("type", "must be link, markdown or feed")
	}
	req.URL = strings.TrimSpace(req.URL)

	switch req.Type {
	case model.LinkTypeMarkdown:
		if req.Content == nil || strings.TrimSpace(*req.Content) == "" {
			return store.LinkParams{}, response.Invalid("content", "is required for markdown links")
		}
		if req.URL != "" {
			if err := validateURL(req.URL); err != nil {
				return store.LinkParams{}, err
			}
		}
	default:
		if err := validateURL(req.URL); err != nil {
			return store.LinkParams{}, err
		}
	}
	if req.Name != nil && len(*req.Name) > maxNameLen {
		return store.LinkParams{}, response.Invalid("name", "is too long")
	}
	return store.LinkParams{Type: req.Type, URL: req.URL, Name: req.Name, Content: req.Content}, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return response.Invalid("url", "is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return response.Invalid("url", "must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return response.Invalid("url", "must use http or https")
	}
	return nil
}
