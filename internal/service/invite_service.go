package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kodomo/inventoryhub/internal/config"
	"kodomo/inventoryhub/internal/model"
	"kodomo/inventoryhub/internal/repository"
	"kodomo/inventoryhub/pkg/crypto"
)

const inviteCodeAttempts = 5

type InviteService interface {
	CreateInviteCode(ctx context.Context, userID, groupID string, maxUses int) (*model.InviteCode, error)
	ListInviteCodes(ctx context.Context, userID, groupID string) ([]model.InviteCode, error)
	RevokeInviteCode(ctx context.Context, userID, groupID, codeID string) error
	DeleteInviteCode(ctx context.Context, userID, groupID, codeID string) error
	RedeemInviteCode(ctx context.Context, userID, code string) (*model.Group, error)
	SendInviteCode(ctx context.Context, userID, groupID, codeID, email string) error
}

type inviteService struct {
	w      *groupWriter
	cfg    config.InviteConfig
	mailer MailSender
	logger *zap.Logger
}

// NewInviteService builds the invite flow. mailer may be nil, in which case
// SendInviteCode reports ErrMailNotConfigured.
func NewInviteService(
	store repository.Store,
	notifier repository.Notifier,
	transactional bool,
	cfg config.InviteConfig,
	mailer MailSender,
	logger *zap.Logger,
) InviteService {
	return &inviteService{
		w: &groupWriter{
			store:         store,
			notifier:      notifier,
			transactional: transactional,
			logger:        logger,
			now:           time.Now,
		},
		cfg:    cfg,
		mailer: mailer,
		logger: logger,
	}
}

func (s *inviteService) CreateInviteCode(ctx context.Context, userID, groupID string, maxUses int) (*model.InviteCode, error) {
	if maxUses < 0 {
		maxUses = 0
	}
	g, _, err := memberGroup(ctx, s.w.store, userID, groupID)
	if err != nil {
		return nil, err
	}
	user, err := s.w.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	now := s.w.now().UTC()
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := crypto.GenerateInviteCode(s.cfg.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("generate invite code: %w", err)
		}
		inviteCode := &model.InviteCode{
			ID:            uuid.NewString(),
			Code:          code,
			GroupID:       g.ID,
			GroupName:     g.Name,
			CreatedBy:     userID,
			CreatedByName: displayNameOf(user),
			ExpiresAt:     now.Add(s.cfg.TTL),
			MaxUses:       maxUses,
			IsActive:      true,
			CreatedAt:     now,
		}
		err = s.w.store.InviteCodes().Create(ctx, inviteCode)
		if err == nil {
			return inviteCode, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("create invite code: %w", err)
		}
		s.logger.Debug("invite code collision, retrying", zap.Int("attempt", attempt+1))
	}
	return nil, ErrInviteCodeCollision
}

func (s *inviteService) ListInviteCodes(ctx context.Context, userID, groupID string) ([]model.InviteCode, error) {
	if _, _, err := memberGroup(ctx, s.w.store, userID, groupID); err != nil {
		return nil, err
	}
	return s.w.store.InviteCodes().ListByGroup(ctx, groupID)
}

// RevokeInviteCode deactivates a code. Plain members may only revoke their own.
func (s *inviteService) RevokeInviteCode(ctx context.Context, userID, groupID, codeID string) error {
	if _, err := s.groupCode(ctx, userID, groupID, codeID, true); err != nil {
		return err
	}
	return s.w.store.InviteCodes().SetActive(ctx, codeID, false)
}

// DeleteInviteCode removes a code of the group; any member may do it.
func (s *inviteService) DeleteInviteCode(ctx context.Context, userID, groupID, codeID string) error {
	if _, err := s.groupCode(ctx, userID, groupID, codeID, false); err != nil {
		return err
	}
	if err := s.w.store.InviteCodes().Delete(ctx, codeID); err != nil {
		return mapInviteErr(err)
	}
	return nil
}

// groupCode loads a code of a group userID belongs to. With creatorOrAdmin set,
// only the code's creator or an owner or admin of the group gets it.
func (s *inviteService) groupCode(ctx context.Context, userID, groupID, codeID string, creatorOrAdmin bool) (*model.InviteCode, error) {
	_, role, err := memberGroup(ctx, s.w.store, userID, groupID)
	if err != nil {
		return nil, err
	}
	code, err := s.w.store.InviteCodes().GetByID(ctx, codeID)
	if err != nil {
		return nil, mapInviteErr(err)
	}
	if code.GroupID != groupID {
		return nil, ErrInviteCodeNotFound
	}
	if creatorOrAdmin && code.CreatedBy != userID && role == model.RoleMember {
		return nil, ErrPermissionDenied
	}
	return code, nil
}

// RedeemInviteCode joins userID to the code's group. Checks run in order:
// the code exists, is active, has not expired, has uses left, and the user is
// not already a member.
func (s *inviteService) RedeemInviteCode(ctx context.Context, userID, code string) (*model.Group, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrInviteCodeNotFound
	}

	var joined *model.Group
	err := s.w.run(ctx, func(ctx context.Context, st repository.Store) error {
		found, err := st.InviteCodes().GetByCode(ctx, code)
		if err != nil {
			return mapInviteErr(err)
		}
		g, err := st.Groups().GetForUpdate(ctx, found.GroupID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInviteCodeNotFound
			}
			return err
		}
		// Re-read under the group lock so the used count is current.
		invite, err := st.InviteCodes().GetByID(ctx, found.ID)
		if err != nil {
			return mapInviteErr(err)
		}

		now := s.w.now().UTC()
		switch {
		case !invite.IsActive:
			return ErrInviteCodeInactive
		case invite.IsExpired(now):
			return ErrInviteCodeExpired
		case invite.IsExhausted():
			return ErrInviteCodeExhausted
		}
		if _, ok := g.RoleOf(userID); ok {
			return ErrAlreadyMember
		}

		user, err := st.Users().GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if g.Members == nil {
			g.Members = model.MemberRoles{}
		}
		if g.MemberNames == nil {
			g.MemberNames = model.MemberNames{}
		}
		g.Members[userID] = model.RoleMember
		g.MemberNames[userID] = displayNameOf(user)
		g.UpdatedAt = now
		if err := st.Groups().Update(ctx, g); err != nil {
			return err
		}
		if err := st.InviteCodes().IncrementUsedCount(ctx, invite.ID); err != nil {
			return err
		}
		if err := st.Users().AddGroup(ctx, userID, g.ID); err != nil {
			return err
		}
		joined = g
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.w.publish(ctx, repository.GroupTopic(joined.ID), repository.UserTopic(userID))
	s.logger.Info("invite code redeemed", zap.String("group_id", joined.ID), zap.String("user_id", userID))
	return joined, nil
}

func (s *inviteService) SendInviteCode(ctx context.Context, userID, groupID, codeID, email string) error {
	if s.mailer == nil {
		return ErrMailNotConfigured
	}
	if _, _, err := memberGroup(ctx, s.w.store, userID, groupID); err != nil {
		return err
	}
	code, err := s.w.store.InviteCodes().GetByID(ctx, codeID)
	if err != nil {
		return mapInviteErr(err)
	}
	if code.GroupID != groupID {
		return ErrInviteCodeNotFound
	}
	if !code.IsActive {
		return ErrInviteCodeInactive
	}
	if code.IsExpired(s.w.now()) {
		return ErrInviteCodeExpired
	}

	subject := fmt.Sprintf("「%s」への招待", code.GroupName)
	if err := s.mailer.Send(ctx, email, subject, inviteMailBody(code, s.cfg.AppURL)); err != nil {
		return fmt.Errorf("send invite mail: %w", err)
	}
	return nil
}

func inviteMailBody(code *model.InviteCode, appURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%sさんから「%s」に招待されました。\n\n", code.CreatedByName, code.GroupName)
	fmt.Fprintf(&b, "招待コード: %s\n", code.Code)
	fmt.Fprintf(&b, "有効期限: %s\n", code.ExpiresAt.Format("2006-01-02 15:04 MST"))
	if appURL != "" {
		fmt.Fprintf(&b, "\nアプリを開いてコードを入力してください: %s\n", appURL)
	}
	return b.String()
}

func mapInviteErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInviteCodeNotFound
	}
	return err
}

var _ InviteService = (*inviteService)(nil)
