package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"campuschat/internal/commands"
	"campuschat/internal/domain"
	"campuschat/internal/events"
	"campuschat/internal/repository"
	"campuschat/internal/transport/httpdto"
	chat_errors "campuschat/pkg/errors"
	"campuschat/pkg/logger"
)

type ConversationService struct {
	repo      repository.ConversationRepository
	publisher events.Publisher
	locks     *keyedMutex
	log       *logger.Logger
}

func NewConversationService(repo repository.ConversationRepository, publisher events.Publisher, log *logger.Logger) *ConversationService {
	return &ConversationService{
		repo:      repo,
		publisher: publisher,
		locks:     newKeyedMutex(),
		log:       log,
	}
}

func (s *ConversationService) RegisterHandlers(bus *commands.Bus) {
	bus.Register(commands.CreateDirectConversationCommand{}.CommandType(), commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.CreateDirectConversationCommand)
		if !ok {
			return commands.Result{}, chat_errors.ErrInvalidInput
		}
		payload, err := s.CreateDirect(ctx, typed.UserA, typed.UserB)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: payload.ID.String(), Payload: payload}, nil
	}))
	bus.Register(commands.CreateGroupConversationCommand{}.CommandType(), commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.CreateGroupConversationCommand)
		if !ok {
			return commands.Result{}, chat_errors.ErrInvalidInput
		}
		payload, err := s.CreateGroup(ctx, typed.Title, typed.CreatorID, typed.ParticipantIDs)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: payload.ID.String(), Payload: payload}, nil
	}))
	bus.Register(commands.ArchiveConversationCommand{}.CommandType(), commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.ArchiveConversationCommand)
		if !ok {
			return commands.Result{}, chat_errors.ErrInvalidInput
		}
		payload, err := s.SetArchived(ctx, typed.ConversationID, typed.UserID, typed.Archive)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: payload.ID.String(), Payload: payload}, nil
	}))
	bus.Register(commands.AddParticipantCommand{}.CommandType(), commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.AddParticipantCommand)
		if !ok {
			return commands.Result{}, chat_errors.ErrInvalidInput
		}
		payload, err := s.AddParticipant(ctx, typed.ConversationID, typed.ActorID, typed.UserID)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: payload.ID.String(), Payload: payload}, nil
	}))
	bus.Register(commands.RemoveParticipantCommand{}.CommandType(), commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.RemoveParticipantCommand)
		if !ok {
			return commands.Result{}, chat_errors.ErrInvalidInput
		}
		payload, err := s.RemoveParticipant(ctx, typed.ConversationID, typed.ActorID, typed.UserID)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: payload.ID.String(), Payload: payload}, nil
	}))
}

// CreateDirect is idempotent per unordered user pair: an existing
// conversation for the pair is returned instead of a duplicate. A
// concurrent create losing the unique-key race falls back to the winner.
func (s *ConversationService) CreateDirect(ctx context.Context, userA, userB uuid.UUID) (httpdto.ConversationPayload, error) {
	if existing, err := s.repo.GetDirectByPair(ctx, userA, userB); err == nil {
		return httpdto.FromConversation(existing), nil
	} else if !errors.Is(err, chat_errors.ErrNotFound) {
		return httpdto.ConversationPayload{}, err
	}

	conv, err := domain.NewDirectConversation(userA, userB)
	if err != nil {
		return httpdto.ConversationPayload{}, err
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		if errors.Is(err, chat_errors.ErrAlreadyExists) {
			if existing, getErr := s.repo.GetDirectByPair(ctx, userA, userB); getErr == nil {
				return httpdto.FromConversation(existing), nil
			}
		}
		return httpdto.ConversationPayload{}, err
	}
	return httpdto.FromConversation(conv), nil
}

func (s *ConversationService) CreateGroup(ctx context.Context, title string, creatorID uuid.UUID, participantIDs []uuid.UUID) (httpdto.ConversationPayload, error) {
	conv, err := domain.NewGroupConversation(title, creatorID, participantIDs)
	if err != nil {
		return httpdto.ConversationPayload{}, err
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return httpdto.ConversationPayload{}, err
	}
	return httpdto.FromConversation(conv), nil
}

func (s *ConversationService) GetByID(ctx context.Context, conversationID, userID uuid.UUID) (httpdto.ConversationPayload, error) {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return httpdto.ConversationPayload{}, err
	}
	if !conv.IsParticipant(userID) {
		return httpdto.ConversationPayload{}, chat_errors.ErrNotParticipant
	}
	return httpdto.FromConversation(conv), nil
}

func (s *ConversationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]httpdto.ConversationPayload, error) {
	convs, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]httpdto.ConversationPayload, 0, len(convs))
	for _, c := range convs {
		out = append(out, httpdto.FromConversation(c))
	}
	return out, nil
}

func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	return s.repo.IsParticipant(ctx, conversationID, userID)
}

// SetArchived toggles the soft archive. Archive and unarchive are both
// idempotent, so client retries are harmless.
func (s *ConversationService) SetArchived(ctx context.Context, conversationID, userID uuid.UUID, archived bool) (httpdto.ConversationPayload, error) {
	conv, err := s.withConversation(ctx, conversationID, func(c *domain.Conversation) error {
		if !c.IsParticipant(userID) {
			return chat_errors.ErrNotParticipant
		}
		if archived {
			c.Archive(time.Now())
		} else {
			c.Unarchive()
		}
		return nil
	})
	if err != nil {
		return httpdto.ConversationPayload{}, err
	}
	return httpdto.FromConversation(conv), nil
}

func (s *ConversationService) AddParticipant(ctx context.Context, conversationID, actorID, userID uuid.UUID) (httpdto.ConversationPayload, error) {
	conv, err := s.withConversation(ctx, conversationID, func(c *domain.Conversation) error {
		if !c.IsParticipant(actorID) {
			return chat_errors.ErrNotParticipant
		}
		return c.AddParticipant(userID)
	})
	if err != nil {
		return httpdto.ConversationPayload{}, err
	}

	s.publishMembership(ctx, events.EventUserJoined, conversationID, userID)
	return httpdto.FromConversation(conv), nil
}

func (s *ConversationService) RemoveParticipant(ctx context.Context, conversationID, actorID, userID uuid.UUID) (httpdto.ConversationPayload, error) {
	conv, err := s.withConversation(ctx, conversationID, func(c *domain.Conversation) error {
		// A participant may remove themselves; removing someone else
		// requires being a participant as well.
		if !c.IsParticipant(actorID) {
			return chat_errors.ErrNotParticipant
		}
		return c.RemoveParticipant(userID)
	})
	if err != nil {
		return httpdto.ConversationPayload{}, err
	}

	s.publishMembership(ctx, events.EventUserLeft, conversationID, userID)
	return httpdto.FromConversation(conv), nil
}

func (s *ConversationService) withConversation(ctx context.Context, conversationID uuid.UUID, mutate func(c *domain.Conversation) error) (*domain.Conversation, error) {
	s.locks.Lock(conversationID)
	defer s.locks.Unlock(conversationID)

	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := mutate(conv); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationService) publishMembership(ctx context.Context, event string, conversationID, userID uuid.UUID) {
	env, err := events.NewEnvelope(event, conversationRoom(conversationID), httpdto.MembershipPayload{
		ConversationID: conversationID,
		UserID:         userID,
	})
	if err != nil {
		s.log.Errorf("marshal %s envelope: %v", event, err)
		return
	}
	if err := s.publisher.Publish(ctx, env); err != nil {
		s.log.Errorf("publish %s: %v", event, err)
	}
}
