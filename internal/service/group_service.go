package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kodomo/inventoryhub/internal/inventory"
	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/repository"
)

type GroupService interface {
	CreateGroup(ctx context.Context, userID, name string) (*model.Group, error)
	ListGroups(ctx context.Context, userID string) ([]model.Group, error)
	GetGroup(ctx context.Context, userID, groupID string) (*model.Group, error)
	RenameGroup(ctx context.Context, userID, groupID, name string) (*model.Group, error)
	RemoveMember(ctx context.Context, userID, groupID, memberID string) (*model.Group, error)
	SetMemberRole(ctx context.Context, userID, groupID, memberID string, role model.MemberRole) (*model.Group, error)

	AddChild(ctx context.Context, userID, groupID string, in ChildInput) (*model.Child, error)
	UpdateChild(ctx context.Context, userID, groupID, childID string, patch inventory.ChildPatch) (*model.Group, error)
	DeleteChild(ctx context.Context, userID, groupID, childID string) (*model.Group, error)

	AddCategory(ctx context.Context, userID, groupID string, in CategoryInput) (*model.Category, error)
	UpdateCategory(ctx context.Context, userID, groupID, categoryID string, patch inventory.CategoryPatch) (*model.Group, error)
	DeleteCategory(ctx context.Context, userID, groupID, categoryID string) (*model.Group, error)
	ReorderCategories(ctx context.Context, userID, groupID string, orderedIDs []string) (*model.Group, error)
}

type groupService struct {
	w      *groupWriter
	images repository.ImageStore
	logger *zap.Logger
}

func NewGroupService(
	store repository.Store,
	notifier repository.Notifier,
	images repository.ImageStore,
	transactional bool,
	logger *zap.Logger,
) GroupService {
	return &groupService{
		w: &groupWriter{
			store:         store,
			notifier:      notifier,
			transactional: transactional,
			logger:        logger,
			now:           time.Now,
		},
		images: images,
		logger: logger,
	}
}

func (s *groupService) CreateGroup(ctx context.Context, userID, name string) (*model.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, inventory.ErrNameRequired
	}

	var group *model.Group
	err := s.w.run(ctx, func(ctx context.Context, st repository.Store) error {
		user, err := st.Users().GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		now := s.w.now().UTC()
		group = &model.Group{
			ID:          uuid.NewString(),
			Name:        name,
			OwnerID:     userID,
			Members:     model.MemberRoles{userID: model.RoleOwner},
			MemberNames: model.MemberNames{userID: displayNameOf(user)},
			Children:    model.ChildList{},
			Categories:  model.CategoryList(model.DefaultCategories()),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := st.Groups().Create(ctx, group); err != nil {
			return err
		}
		return st.Users().AddGroup(ctx, userID, group.ID)
	})
	if err != nil {
		return nil, err
	}
	s.w.publish(ctx, repository.UserTopic(userID))
	s.logger.Info("group created", zap.String("group_id", group.ID), zap.String("owner_id", userID))
	return group, nil
}

func (s *groupService) ListGroups(ctx context.Context, userID string) ([]model.Group, error) {
	user, err := s.w.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.w.store.Groups().ListByIDs(ctx, user.GroupIDs)
}

func (s *groupService) GetGroup(ctx context.Context, userID, groupID string) (*model.Group, error) {
	g, _, err := memberGroup(ctx, s.w.store, userID, groupID)
	return g, err
}

func (s *groupService) RenameGroup(ctx context.Context, userID, groupID, name string) (*model.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, inventory.ErrNameRequired
	}
	return s.w.mutateGroup(ctx, userID, groupID, func(_ context.Context, _ repository.Store, g *model.Group, _ model.MemberRole) error {
		g.Name = name
		return nil
	})
}

// RemoveMember lets the owner remove anyone but themselves, an admin remove
// plain members, and any member leave.
func (s *groupService) RemoveMember(ctx context.Context, userID, groupID, memberID string) (*model.Group, error) {
	g, err := s.w.mutateGroup(ctx, userID, groupID, func(ctx context.Context, st repository.Store, g *model.Group, role model.MemberRole) error {
		target, ok := g.RoleOf(memberID)
		if !ok {
			return ErrMemberNotFound
		}
		if memberID == g.OwnerID {
			return ErrCannotRemoveOwner
		}
		if memberID != userID {
			switch role {
			case model.RoleOwner:
			case model.RoleAdmin:
				if target != model.RoleMember {
					return ErrPermissionDenied
				}
			default:
				return ErrPermissionDenied
			}
		}
		delete(g.Members, memberID)
		delete(g.MemberNames, memberID)
		if err := st.Users().RemoveGroup(ctx, memberID, groupID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.w.publish(ctx, repository.UserTopic(memberID))
	return g, nil
}

func (s *groupService) SetMemberRole(ctx context.Context, userID, groupID, memberID string, role model.MemberRole) (*model.Group, error) {
	if role != model.RoleAdmin && role != model.RoleMember {
		return nil, ErrInvalidRole
	}
	return s.w.mutateGroup(ctx, userID, groupID, func(_ context.Context, _ repository.Store, g *model.Group, actor model.MemberRole) error {
		if actor != model.RoleOwner {
			return ErrPermissionDenied
		}
		if _, ok := g.RoleOf(memberID); !ok {
			return ErrMemberNotFound
		}
		if memberID == g.OwnerID {
			return ErrCannotChangeOwner
		}
		g.Members[memberID] = role
		return nil
	})
}

func (s *groupService) AddChild(ctx context.Context, userID, groupID string, in ChildInput) (*model.Child, error) {
	child := model.Child{ID: uuid.NewString(), Name: strings.TrimSpace(in.Name), Color: in.Color, Emoji: in.Emoji}
	if err := inventory.ValidateChild(child); err != nil {
		return nil, err
	}
	_, err := s.w.mutateGroup(ctx, userID, groupID, func(_ context.Context, _ repository.Store, g *model.Group, _ model.MemberRole) error {
		g.Children = inventory.AppendChild(g.Children, child)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &child, nil
}

// UpdateChild leaves the group unchanged when the child does not exist.
func (s *groupService) UpdateChild(ctx context.Context, userID, groupID, childID string, patch inventory.ChildPatch) (*model.Group, error) {
	return s.w.mutateGroup(ctx, userID, groupID, func(_ context.Context, _ repository.Store, g *model.Group, _ model.MemberRole) error {
		children, found := inventory.PatchChild(g.Children, childID, patch)
		if !found {
			return nil
		}
		for _, c := range children {
			if c.ID == childID {
				if err := inventory.ValidateChild(c); err != nil {
					return err
				}
			}
		}
		g.Children = children
		return nil
	})
}

// DeleteChild hands the child's items to the household before dropping the child.
func (s *groupService) DeleteChild(ctx context.Context, userID, groupID, childID string) (*model.Group, error) {
	g, err := s.w.mutateGroup(ctx, userID, groupID, func(ctx context.Context, st repository.Store, g *model.Group, _ model.MemberRole) error {
		if _, err := st.Items().ReassignChild(ctx, groupID, childID, s.w.now().UTC()); err != nil {
			return err
		}
		g.Children = inventory.RemoveChild(g.Children, childID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.w.publish(ctx, repository.GroupItemsTopic(groupID))
	return g, nil
}

func (s *groupService) AddCategory(ctx context.Context, userID, groupID string, in CategoryInput) (*model.Category, error) {
	category := model.Category{ID: uuid.NewString(), Name: strings.TrimSpace(in.Name), Emoji: in.Emoji}
	if err := inventory.ValidateCategory(category); err != nil {
		return nil, err
	}
	_, err := s.w.mutateGroup(ctx, userID, groupID, func(_ context.Context, _ repository.Store, g *model.Group, _ model.MemberRole) error {
		g.Categories = inventory.AppendCategory(g.Categories, category)
		category = g.Categories[len(g.Categories)-1]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *groupService) UpdateCategory(ctx context.Context, userID, groupID, categoryID string, patch inventory.CategoryPatch) (*model.Group, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, inventory.ErrNameRequired
	}
	return s.w.mutateGroup(ctx, userID, groupID, func(_ context.Context, _ repository.Store, g *model.Group, _ model.MemberRole) error {
		g.Categories, _ = inventory.PatchCategory(g.Categories, categoryID, patch)
		return nil
	})
}

// DeleteCategory removes the category with all of its items, then deletes their photos.
func (s *groupService) DeleteCategory(ctx context.Context, userID, groupID, categoryID string) (*model.Group, error) {
	var removed []model.InventoryItem
	g, err := s.w.mutateGroup(ctx, userID, groupID, func(ctx context.Context, st repository.Store, g *model.Group, _ model.MemberRole) error {
		var err error
		removed, err = st.Items().DeleteByCategory(ctx, groupID, categoryID)
		if err != nil {
			return err
		}
		g.Categories = inventory.RemoveCategory(g.Categories, categoryID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.w.publish(ctx, repository.GroupItemsTopic(groupID))

	for _, item := range removed {
		if item.ImageURL != nil {
			deleteImage(ctx, s.images, s.logger, *item.ImageURL)
		}
	}
	return g, nil
}

func (s *groupService) ReorderCategories(ctx context.Context, userID, groupID string, orderedIDs []string) (*model.Group, error) {
	return s.w.mutateGroup(ctx, userID, groupID, func(_ context.Context, _ repository.Store, g *model.Group, _ model.MemberRole) error {
		reordered, err := inventory.ReorderCategories(g.Categories, orderedIDs)
		if err != nil {
			return err
		}
		g.Categories = reordered
		return nil
	})
}

// deleteImage is best-effort: a leftover object is recoverable, a failed item delete is not.
func deleteImage(ctx context.Context, images repository.ImageStore, logger *zap.Logger, ref string) {
	if images == nil || ref == "" {
		return
	}
	if err := images.Delete(ctx, ref); err != nil {
		logger.Warn("failed to delete image", zap.String("ref", ref), zap.Error(err))
	}
}

var _ GroupService = (*groupService)(nil)
