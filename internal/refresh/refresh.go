// Package refresh keeps group and markdown-link caches current.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/linkshelf/internal/model"
	"github.com/dukerupert/linkshelf/internal/render"
	"github.com/dukerupert/linkshelf/internal/store"
	"github.com/dukerupert/linkshelf/internal/websocket"
)

// Publisher delivers change notifications to a user's connections.
type Publisher interface {
	Publish(username string, msg websocket.Message)
}

// Scheduler periodically re-renders caches that are missing or older than
// their group's refresh interval. Failures are logged and retried on the
// next tick.
type Scheduler struct {
	mu       sync.RWMutex
	users    *store.UserStore
	groups   *store.GroupStore
	links    *store.LinkStore
	caches   *store.CacheStore
	renderer *render.Renderer
	pub      Publisher
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a refresh scheduler. pub may be nil.
func NewScheduler(
	users *store.UserStore,
	groups *store.GroupStore,
	links *store.LinkStore,
	caches *store.CacheStore,
	renderer *render.Renderer,
	pub Publisher,
	interval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		users:    users,
		groups:   groups,
		links:    links,
		caches:   caches,
		renderer: renderer,
		pub:      pub,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Stats counts the work done by one tick.
type Stats struct {
	Groups int
	Links  int
	Pruned int64
	Failed int
}

func (s *Scheduler) tick(ctx context.Context) Stats {
	var st Stats

	groups, err := s.groups.ListStale(ctx)
	if err != nil {
		s.logger.Error("list stale groups", "error", err)
		st.Failed++
	}
	for _, g := range groups {
		if _, err := s.RefreshGroup(ctx, g.ID); err != nil {
			s.logger.Error("refresh group", "group_id", g.ID, "error", err)
			st.Failed++
			continue
		}
		st.Groups++
	}

	links, err := s.links.ListStaleMarkdown(ctx)
	if err != nil {
		s.logger.Error("list stale links", "error", err)
		st.Failed++
	}
	for i := range links {
		if err := s.refreshLink(ctx, &links[i]); err != nil {
			s.logger.Error("refresh link", "link_id", links[i].ID, "error", err)
			st.Failed++
			continue
		}
		st.Links++
	}

	st.Pruned, err = s.caches.PruneOrphans(ctx)
	if err != nil {
		s.logger.Error("prune caches", "error", err)
		st.Failed++
	}

	if st.Groups+st.Links > 0 || st.Failed > 0 {
		s.logger.Info("refresh tick", "groups", st.Groups, "links", st.Links, "pruned", st.Pruned, "failed", st.Failed)
	}
	return st
}

// RefreshGroup renders the group page into the group's cache now and
// notifies the owner.
func (s *Scheduler) RefreshGroup(ctx context.Context, groupID int64) (*model.CacheEntry, error) {
	d, err := s.groups.Details(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("load group: %w", err)
	}

	page, err := s.renderer.GroupPage(d.Group, d.Links)
	if err != nil {
		return nil, err
	}

	entry, err := s.caches.WriteGroupCache(ctx, groupID, page)
	if err != nil {
		return nil, fmt.Errorf("write group cache: %w", err)
	}

	s.notify(ctx, d.Group.UserID, websocket.NewMessage("group", "cache_refreshed", groupID, map[string]any{
		"cache_id": entry.ID,
	}))
	return entry, nil
}

func (s *Scheduler) refreshLink(ctx context.Context, l *model.Link) error {
	out, ok, err := s.renderer.Link(l)
	if err != nil || !ok {
		return err
	}

	entry, err := s.caches.WriteLinkCache(ctx, l.ID, out)
	if err != nil {
		return fmt.Errorf("write link cache: %w", err)
	}

	g, err := s.groups.GetByID(ctx, l.GroupID)
	if err != nil {
		s.logger.Warn("resolve group for notification", "link_id", l.ID, "group_id", l.GroupID, "error", err)
		return nil
	}
	s.notify(ctx, g.UserID, websocket.NewMessage("link", "cache_refreshed", l.ID, map[string]any{
		"cache_id": entry.ID,
		"group_id": l.GroupID,
	}))
	return nil
}

func (s *Scheduler) notify(ctx context.Context, userID int64, msg websocket.Message) {
	if s.pub == nil {
		return
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("resolve owner for notification", "user_id", userID, "error", err)
		return
	}
	s.pub.Publish(u.Username, msg)
}
