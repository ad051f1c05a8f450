package invitation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/mail"
	"strings"
	"time"

	"exchange-hub-go/internal/apperror"
	"exchange-hub-go/internal/domain/audit"
	"exchange-hub-go/internal/domain/participant"
	"exchange-hub-go/internal/domain/permission"
	"exchange-hub-go/internal/events"
	"exchange-hub-go/pkg/logger"
	"github.com/google/uuid"
)

const (
	DefaultTTL     = 7 * 24 * time.Hour
	tokenBytes     = 32
	maxMessageSize = 2000
)

type Permissions interface {
	Require(ctx context.Context, subject permission.Subject, exchangeID string, capability permission.Capability) (permission.Effective, error)
}

// Participants adds the accepting user to the exchange.
type Participants interface {
	Join(ctx context.Context, exchangeID, userID string, role permission.Role, addedBy string) (*participant.Participant, error)
}

// Users applies the invited role to accounts still on the default role.
type Users interface {
	PromoteFromInvitation(ctx context.Context, userID string, role permission.Role) error
}

type Notifier interface {
	NotifyUser(ctx context.Context, userID, exchangeID, templateKey string, vars map[string]string) error
}

type Auditor interface {
	Record(ctx context.Context, action, entityType, entityID, exchangeID string, details map[string]any)
}

type Service struct {
	repo         Repository
	permissions  Permissions
	participants Participants
	users        Users
	notifier     Notifier
	publisher    events.Publisher
	audit        Auditor
	log          logger.Logger
	ttl          time.Duration
	now          func() time.Time
}

type Deps struct {
	Permissions  Permissions
	Participants Participants
	Users        Users
	Notifier     Notifier
	Publisher    events.Publisher
	Auditor      Auditor
}

func NewService(repo Repository, deps Deps, ttl time.Duration, log logger.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		repo:         repo,
		permissions:  deps.Permissions,
		participants: deps.Participants,
		users:        deps.Users,
		notifier:     deps.Notifier,
		publisher:    deps.Publisher,
		audit:        deps.Auditor,
		log:          log,
		ttl:          ttl,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Send creates a pending invitation and returns it together with its token.
func (s *Service) Send(ctx context.Context, actor permission.Subject, exchangeID string, input SendInput) (*Sent, error) {
	if _, err := s.permissions.Require(ctx, actor, exchangeID, permission.CanAddParticipants); err != nil {
		return nil, err
	}

	email, phone := normalizeEmail(input.Email), trimmed(input.Phone)
	if email == nil && phone == nil {
		return nil, ErrContactRequired
	}
	var errs apperror.Collector
	if email != nil {
		if _, err := mail.ParseAddress(*email); err != nil {
			errs.Add("email", "must be a valid email address")
		}
	}
	message := trimmed(input.Message)
	if message != nil && len(*message) > maxMessageSize {
		errs.Add("message", "is too long")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	role, ok := permission.NormalizeRole(input.Role)
	if !ok {
		return nil, ErrInvalidRole
	}
	if role == permission.RoleAdmin && !actor.IsAdmin() {
		return nil, ErrAdminInviteForbidden
	}

	now := s.now()
	// A lapsed pending invitation would otherwise block a fresh one.
	if _, err := s.repo.ExpireStale(ctx, exchangeID, now); err != nil {
		return nil, apperror.Upstream("invitation_expire_failed", err)
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}
	invitation := Invitation{
		ID:         uuid.NewString(),
		ExchangeID: exchangeID,
		Email:      email,
		Phone:      phone,
		Role:       string(role),
		Message:    message,
		TokenHash:  HashToken(token),
		Status:     StatusPending,
		InvitedBy:  actor.UserID,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, &invitation); err != nil {
		if errors.Is(err, ErrDuplicateInvitation) {
			logger.FromContext(ctx, s.log).BusinessError("invitations.send: duplicate pending invitation", err,
				"exchange_id", exchangeID)
			return nil, err
		}
		return nil, apperror.Upstream("invitation_create_failed", err)
	}

	s.record(ctx, audit.ActionInvitationSent, &invitation, map[string]any{"role": invitation.Role})
	s.publish(ctx, events.InvitationSent, &invitation, actor.UserID)
	return &Sent{Invitation: invitation, Token: token}, nil
}

func (s *Service) List(ctx context.Context, actor permission.Subject, exchangeID string) ([]Invitation, error) {
	if _, err := s.permissions.Require(ctx, actor, exchangeID, permission.CanManageInvitations); err != nil {
		return nil, err
	}
	if _, err := s.repo.ExpireStale(ctx, exchangeID, s.now()); err != nil {
		return nil, apperror.Upstream("invitation_expire_failed", err)
	}
	items, err := s.repo.ListByExchange(ctx, exchangeID)
	if err != nil {
		return nil, apperror.Upstream("invitation_list_failed", err)
	}
	return items, nil
}

func (s *Service) Cancel(ctx context.Context, actor permission.Subject, id string) error {
	invitation, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.permissions.Require(ctx, actor, invitation.ExchangeID, permission.CanManageInvitations); err != nil {
		return err
	}
	if invitation.Status != StatusPending {
		return ErrInvitationNotPending
	}

	swapped, err := s.repo.SwapStatus(ctx, id, Transition{From: StatusPending, To: StatusCancelled})
	if err != nil {
		return apperror.Upstream("invitation_cancel_failed", err)
	}
	if !swapped {
		return ErrInvitationNotPending
	}
	invitation.Status = StatusCancelled
	s.record(ctx, audit.ActionInvitationCancelled, invitation, nil)
	return nil
}

// Preview resolves a token for the public invitation page. Pending
// invitations past their expiry are marked expired here.
func (s *Service) Preview(ctx context.Context, token string) (*Preview, error) {
	invitation, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	name, err := s.repo.ExchangeName(ctx, invitation.ExchangeID)
	if err != nil {
		return nil, apperror.Upstream("invitation_preview_failed", err)
	}
	return &Preview{
		ID:           invitation.ID,
		ExchangeID:   invitation.ExchangeID,
		ExchangeName: name,
		Role:         invitation.Role,
		Email:        invitation.Email,
		Message:      invitation.Message,
		Status:       invitation.Status,
		ExpiresAt:    invitation.ExpiresAt,
	}, nil
}

// Accept turns the invitation into a participant for the signed-in user.
// The invitation is claimed before anyone joins, so a concurrent cancel or
// a second user cannot both win. Accepting an invitation the same user
// already accepted is a no-op.
func (s *Service) Accept(ctx context.Context, actor permission.Subject, email, token string) (*participant.Participant, error) {
	invitation, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	switch invitation.Status {
	case StatusPending:
	case StatusExpired:
		return nil, ErrInvitationExpired
	case StatusAccepted:
		if invitation.AcceptedBy == nil || *invitation.AcceptedBy != actor.UserID {
			return nil, ErrInvitationNotPending
		}
	default:
		return nil, ErrInvitationNotPending
	}
	if invitation.Email != nil && !strings.EqualFold(*invitation.Email, strings.TrimSpace(email)) {
		return nil, ErrEmailMismatch
	}

	role, ok := permission.NormalizeRole(invitation.Role)
	if !ok {
		return nil, ErrInvalidRole
	}
	if invitation.Status == StatusAccepted {
		return s.participants.Join(ctx, invitation.ExchangeID, actor.UserID, role, invitation.InvitedBy)
	}

	now := s.now()
	swapped, err := s.repo.SwapStatus(ctx, invitation.ID, Transition{
		From:       StatusPending,
		To:         StatusAccepted,
		AcceptedAt: &now,
		AcceptedBy: &actor.UserID,
	})
	if err != nil {
		return nil, apperror.Upstream("invitation_accept_failed", err)
	}
	if !swapped {
		current, err := s.repo.GetByID(ctx, invitation.ID)
		if err != nil {
			return nil, err
		}
		if current.Status != StatusAccepted || current.AcceptedBy == nil || *current.AcceptedBy != actor.UserID {
			return nil, ErrInvitationNotPending
		}
		return s.participants.Join(ctx, invitation.ExchangeID, actor.UserID, role, invitation.InvitedBy)
	}

	member, err := s.participants.Join(ctx, invitation.ExchangeID, actor.UserID, role, invitation.InvitedBy)
	if err != nil {
		if _, rerr := s.repo.SwapStatus(ctx, invitation.ID, Transition{From: StatusAccepted, To: StatusPending}); rerr != nil {
			logger.FromContext(ctx, s.log).InternalError("invitations.accept: reopen after failed join", rerr,
				"invitation_id", invitation.ID, "user_id", actor.UserID)
		}
		return nil, err
	}
	if err := s.users.PromoteFromInvitation(ctx, actor.UserID, role); err != nil {
		logger.FromContext(ctx, s.log).InternalError("invitations.accept: role promotion failed", err,
			"invitation_id", invitation.ID, "user_id", actor.UserID)
	}

	invitation.Status = StatusAccepted
	invitation.AcceptedAt = &now
	invitation.AcceptedBy = &actor.UserID
	s.record(ctx, audit.ActionInvitationAccepted, invitation, map[string]any{
		"participant_id": member.ID,
		"role":           invitation.Role,
	})
	s.publish(ctx, events.InvitationAccepted, invitation, actor.UserID)
	if s.notifier != nil {
		vars := map[string]string{"Role": invitation.Role}
		if invitation.Email != nil {
			vars["Email"] = *invitation.Email
		}
		if err := s.notifier.NotifyUser(ctx, invitation.InvitedBy, invitation.ExchangeID, "invitation_accepted", vars); err != nil {
			logger.FromContext(ctx, s.log).InternalError("invitations.accept: notify failed", err, "invitation_id", invitation.ID)
		}
	}
	return member, nil
}

// ExpireStale is the periodic sweep over every exchange.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	count, err := s.repo.ExpireStale(ctx, "", s.now())
	if err != nil {
		return 0, apperror.Upstream("invitation_expire_failed", err)
	}
	if count > 0 {
		logger.FromContext(ctx, s.log).Info("invitations.sweep: expired invitations", "count", count)
	}
	return count, nil
}

func (s *Service) byToken(ctx context.Context, token string) (*Invitation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvitationNotFound
	}
	invitation, err := s.repo.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}
	if invitation.Status == StatusPending && invitation.Expired(s.now()) {
		if _, err := s.repo.SwapStatus(ctx, invitation.ID, Transition{From: StatusPending, To: StatusExpired}); err != nil {
			return nil, apperror.Upstream("invitation_expire_failed", err)
		}
		invitation.Status = StatusExpired
	}
	return invitation, nil
}

func (s *Service) record(ctx context.Context, action string, invitation *Invitation, details map[string]any) {
	if s.audit != nil {
		s.audit.Record(ctx, action, audit.EntityInvitation, invitation.ID, invitation.ExchangeID, details)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, invitation *Invitation, actorID string) {
	if s.publisher == nil {
		return
	}
	payload := map[string]any{"invitation_id": invitation.ID, "role": invitation.Role}
	if invitation.Email != nil {
		payload["email"] = *invitation.Email
	}
	if err := s.publisher.Publish(ctx, events.New(eventType, invitation.ExchangeID, actorID, payload)); err != nil {
		logger.FromContext(ctx, s.log).InternalError("invitations.publish: publish failed", err, "event_type", eventType)
	}
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", apperror.Upstream("invitation_token_failed", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func normalizeEmail(value *string) *string {
	v := trimmed(value)
	if v == nil {
		return nil
	}
	lower := strings.ToLower(*v)
	return &lower
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
