package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/repository"
)

type UpdateKind string

const (
	UpdateGroups UpdateKind = "groups"
	UpdateItems  UpdateKind = "items"
)

const sessionUpdateBuffer = 8

// SessionUpdate is a full replacement of one part of the mirror.
type SessionUpdate struct {
	Kind    UpdateKind            `json:"kind"`
	Groups  []model.Group         `json:"groups,omitempty"`
	GroupID string                `json:"groupId,omitempty"`
	Items   []model.InventoryItem `json:"items,omitempty"`
}

// GroupSession mirrors the groups of one user and the items of their current
// group. Every change signal triggers a fresh read; the last read wins.
type GroupSession interface {
	Updates() <-chan SessionUpdate
	Groups() []model.Group
	CurrentGroupID() string
	Items() []model.InventoryItem
	// SetCurrentGroup switches the items stream. Updates for the previous
	// group that are still in flight are dropped.
	SetCurrentGroup(ctx context.Context, groupID string) error
	Close() error
}

// SyncService opens realtime sessions.
type SyncService interface {
	Open(ctx context.Context, userID string) (GroupSession, error)
}

type syncService struct {
	store    repository.Store
	notifier repository.Notifier
	logger   *zap.Logger
}

func NewSyncService(store repository.Store, notifier repository.Notifier, logger *zap.Logger) SyncService {
	return &syncService{store: store, notifier: notifier, logger: logger}
}

func (s *syncService) Open(ctx context.Context, userID string) (GroupSession, error) {
	return NewGroupSession(ctx, s.store, s.notifier, userID, s.logger)
}

type watch struct {
	sub    repository.Subscription
	cancel context.CancelFunc
}

func (w *watch) stop() {
	w.cancel()
	_ = w.sub.Close()
}

type groupSession struct {
	store    repository.Store
	notifier repository.Notifier
	userID   string
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// groupsMu and itemsMu serialize reloads so a slower read never lands after a newer one.
	groupsMu sync.Mutex
	itemsMu  sync.Mutex
	// switchMu serializes SetCurrentGroup.
	switchMu sync.Mutex

	mu           sync.Mutex
	closed       bool
	userWatch    *watch
	groupWatches map[string]*watch
	itemsWatch   *watch
	itemsGen     uint64
	currentGroup string
	groups       []model.Group
	items        []model.InventoryItem
	updates      chan SessionUpdate
}

// NewGroupSession subscribes to the user's profile and groups and loads the
// initial group list. The session ends when ctx is done or Close is called.
func NewGroupSession(
	ctx context.Context,
	store repository.Store,
	notifier repository.Notifier,
	userID string,
	logger *zap.Logger,
) (GroupSession, error) {
	sctx, cancel := context.WithCancel(ctx)
	s := &groupSession{
		store:        store,
		notifier:     notifier,
		userID:       userID,
		logger:       logger.With(zap.String("user_id", userID)),
		ctx:          sctx,
		cancel:       cancel,
		groupWatches: make(map[string]*watch),
		updates:      make(chan SessionUpdate, sessionUpdateBuffer),
	}

	err := s.startWatch(repository.UserTopic(userID), s.onGroupsChanged, func(w *watch) {
		s.userWatch = w
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := s.reloadGroups(sctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *groupSession) Updates() <-chan SessionUpdate { return s.updates }

func (s *groupSession) Groups() []model.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Group(nil), s.groups...)
}

func (s *groupSession) CurrentGroupID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentGroup
}

func (s *groupSession) Items() []model.InventoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.InventoryItem(nil), s.items...)
}

func (s *groupSession) SetCurrentGroup(ctx context.Context, groupID string) error {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	if _, _, err := memberGroup(ctx, s.store, s.userID, groupID); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	old := s.itemsWatch
	s.itemsWatch = nil
	s.itemsGen++
	gen := s.itemsGen
	s.currentGroup = groupID
	s.items = nil
	s.mu.Unlock()

	// The previous stream is torn down before the next one opens.
	if old != nil {
		old.stop()
	}

	onSignal := func(ctx context.Context) {
		s.logReloadErr(s.reloadItems(ctx, gen, groupID), "items")
	}
	err := s.startWatch(repository.GroupItemsTopic(groupID), onSignal, func(w *watch) {
		s.itemsWatch = w
	})
	if err != nil {
		return err
	}
	return s.reloadItems(ctx, gen, groupID)
}

func (s *groupSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	watches := make([]*watch, 0, len(s.groupWatches)+2)
	if s.userWatch != nil {
		watches = append(watches, s.userWatch)
	}
	if s.itemsWatch != nil {
		watches = append(watches, s.itemsWatch)
	}
	for _, w := range s.groupWatches {
		watches = append(watches, w)
	}
	s.userWatch, s.itemsWatch, s.groupWatches = nil, nil, nil
	s.mu.Unlock()

	s.cancel()
	for _, w := range watches {
		w.stop()
	}
	s.wg.Wait()
	close(s.updates)
	return nil
}

// startWatch subscribes to topic and calls onSignal for every delivery.
// register runs with mu held once the watch is live.
func (s *groupSession) startWatch(topic string, onSignal func(ctx context.Context), register func(w *watch)) error {
	sub, err := s.notifier.Subscribe(s.ctx, topic)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithCancel(s.ctx)
	w := &watch{sub: sub, cancel: cancel}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		w.stop()
		return ErrSessionClosed
	}
	register(w)
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-wctx.Done():
				return
			case <-sub.C():
				onSignal(wctx)
			}
		}
	}()
	return nil
}

func (s *groupSession) onGroupsChanged(ctx context.Context) {
	s.logReloadErr(s.reloadGroups(ctx), "groups")
}

// reloadGroups re-reads the profile and its groups, then adjusts the per-group
// watches to the current membership.
func (s *groupSession) reloadGroups(ctx context.Context) error {
	s.groupsMu.Lock()
	defer s.groupsMu.Unlock()

	user, err := s.store.Users().GetByID(ctx, s.userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	listed, err := s.store.Groups().ListByIDs(ctx, user.GroupIDs)
	if err != nil {
		return err
	}
	groups := make([]model.Group, 0, len(listed))
	want := make(map[string]bool, len(listed))
	for _, g := range listed {
		if _, ok := g.RoleOf(s.userID); ok {
			groups = append(groups, g)
			want[g.ID] = true
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	var stale []*watch
	for id, w := range s.groupWatches {
		if !want[id] {
			stale = append(stale, w)
			delete(s.groupWatches, id)
		}
	}
	var missing []string
	for _, g := range groups {
		if _, ok := s.groupWatches[g.ID]; !ok {
			missing = append(missing, g.ID)
		}
	}
	s.groups = groups
	s.emit(SessionUpdate{Kind: UpdateGroups, Groups: groups})

	if s.currentGroup != "" && !want[s.currentGroup] {
		stale = append(stale, s.itemsWatch)
		s.itemsWatch = nil
		s.itemsGen++
		s.currentGroup = ""
		s.items = nil
		s.emit(SessionUpdate{Kind: UpdateItems})
	}
	s.mu.Unlock()

	for _, w := range stale {
		if w != nil {
			w.stop()
		}
	}
	for _, id := range missing {
		err := s.startWatch(repository.GroupTopic(id), s.onGroupsChanged, func(w *watch) {
			s.groupWatches[id] = w
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *groupSession) reloadItems(ctx context.Context, gen uint64, groupID string) error {
	s.itemsMu.Lock()
	defer s.itemsMu.Unlock()

	if !s.isCurrent(gen) {
		return nil
	}
	items, err := s.store.Items().ListByGroup(ctx, groupID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.itemsGen {
		return nil
	}
	s.items = items
	s.emit(SessionUpdate{Kind: UpdateItems, GroupID: groupID, Items: items})
	return nil
}

func (s *groupSession) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && gen == s.itemsGen
}

// emit must be called with mu held. A slow reader loses the oldest pending
// update, never the newest.
func (s *groupSession) emit(u SessionUpdate) {
	for {
		select {
		case s.updates <- u:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}

func (s *groupSession) logReloadErr(err error, what string) {
	if err == nil || errors.Is(err, ErrSessionClosed) || errors.Is(err, context.Canceled) {
		return
	}
	s.logger.Warn("session reload failed", zap.String("stream", what), zap.Error(err))
}

var _ GroupSession = (*groupSession)(nil)
