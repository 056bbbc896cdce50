package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/repository"
)

// groupWriter runs cloud writes and announces them. With transactional writes
// off, multi-step writes run step by step and the last writer wins.
type groupWriter struct {
	store         repository.Store
	notifier      repository.Notifier
	transactional bool
	logger        *zap.Logger
	now           func() time.Time
}

func (w *groupWriter) run(ctx context.Context, fn func(ctx context.Context, st repository.Store) error) error {
	if w.transactional {
		return w.store.WithTx(ctx, fn)
	}
	return fn(ctx, w.store)
}

// publish is fire-and-forget: the write is already committed.
func (w *groupWriter) publish(ctx context.Context, topics ...string) {
	for _, topic := range topics {
		if err := w.notifier.Publish(ctx, topic); err != nil {
			w.logger.Warn("failed to publish change", zap.String("topic", topic), zap.Error(err))
		}
	}
}

// mutateGroup is a whole-document read-modify-write of one group by a member.
// fn may also write other documents through st.
func (w *groupWriter) mutateGroup(
	ctx context.Context, userID, groupID string,
	fn func(ctx context.Context, st repository.Store, g *model.Group, role model.MemberRole) error,
) (*model.Group, error) {
	var out *model.Group
	err := w.run(ctx, func(ctx context.Context, st repository.Store) error {
		g, err := st.Groups().GetForUpdate(ctx, groupID)
		if err != nil {
			return mapGroupErr(err)
		}
		role, ok := g.RoleOf(userID)
		if !ok {
			return ErrNotGroupMember
		}
		if err := fn(ctx, st, g, role); err != nil {
			return err
		}
		g.UpdatedAt = w.now().UTC()
		if err := st.Groups().Update(ctx, g); err != nil {
			return err
		}
		out = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.publish(ctx, repository.GroupTopic(groupID))
	return out, nil
}

// memberGroup reads a group the user belongs to.
func memberGroup(ctx context.Context, store repository.Store, userID, groupID string) (*model.Group, model.MemberRole, error) {
	g, err := store.Groups().GetByID(ctx, groupID)
	if err != nil {
		return nil, "", mapGroupErr(err)
	}
	role, ok := g.RoleOf(userID)
	if !ok {
		return nil, "", ErrNotGroupMember
	}
	return g, role, nil
}

func mapGroupErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrGroupNotFound
	}
	return err
}

func displayNameOf(u *model.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}
