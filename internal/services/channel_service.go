package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"campuschat/internal/commands"
	"campuschat/internal/domain"
	"campuschat/internal/repository"
	"campuschat/internal/transport/httpdto"
	chat_errors "campuschat/pkg/errors"
	"campuschat/pkg/logger"
)

type ChannelService struct {
	repo  repository.ChannelRepository
	locks *keyedMutex
	log   *logger.Logger
}

func NewChannelService(repo repository.ChannelRepository, log *logger.Logger) *ChannelService {
	return &ChannelService{repo: repo, locks: newKeyedMutex(), log: log}
}

func (s *ChannelService) RegisterHandlers(bus *commands.Bus) {
	bus.Register(commands.CreateChannelCommand{}.CommandType(), commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.CreateChannelCommand)
		if !ok {
			return commands.Result{}, chat_errors.ErrInvalidInput
		}
		payload, err := s.Create(ctx, typed)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: payload.ID.String(), Payload: payload}, nil
	}))
	bus.Register(commands.JoinChannelCommand{}.CommandType(), commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.JoinChannelCommand)
		if !ok {
			return commands.Result{}, chat_errors.ErrInvalidInput
		}
		payload, err := s.Join(ctx, typed)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: payload.ID.String(), Payload: payload}, nil
	}))
	bus.Register(commands.LeaveChannelCommand{}.CommandType(), commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.LeaveChannelCommand)
		if !ok {
			return commands.Result{}, chat_errors.ErrInvalidInput
		}
		payload, err := s.Leave(ctx, typed)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: payload.ID.String(), Payload: payload}, nil
	}))
	bus.Register(commands.ArchiveChannelCommand{}.CommandType(), commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.ArchiveChannelCommand)
		if !ok {
			return commands.Result{}, chat_errors.ErrInvalidInput
		}
		payload, err := s.SetArchived(ctx, typed)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: payload.ID.String(), Payload: payload}, nil
	}))
}

func (s *ChannelService) Create(ctx context.Context, cmd commands.CreateChannelCommand) (httpdto.ChannelPayload, error) {
	ch, err := domain.NewChannel(cmd.Name, cmd.Description, cmd.Type, cmd.OwnerID)
	if err != nil {
		return httpdto.ChannelPayload{}, err
	}
	if err := s.repo.Create(ctx, ch); err != nil {
		return httpdto.ChannelPayload{}, err
	}
	return httpdto.FromChannel(ch), nil
}

// Join admits anyone to a public channel; a private channel only admits
// users added by one of its moderators.
func (s *ChannelService) Join(ctx context.Context, cmd commands.JoinChannelCommand) (httpdto.ChannelPayload, error) {
	ch, err := s.withChannel(ctx, cmd.ChannelID, func(ch *domain.Channel) error {
		if ch.Type == domain.ChannelTypePrivate {
			if cmd.AddedBy == nil || !ch.IsModerator(*cmd.AddedBy) {
				return chat_errors.ErrForbidden
			}
		}
		return ch.Join(cmd.UserID)
	})
	if err != nil {
		return httpdto.ChannelPayload{}, err
	}
	return httpdto.FromChannel(ch), nil
}

func (s *ChannelService) Leave(ctx context.Context, cmd commands.LeaveChannelCommand) (httpdto.ChannelPayload, error) {
	ch, err := s.withChannel(ctx, cmd.ChannelID, func(ch *domain.Channel) error {
		return ch.Leave(cmd.UserID)
	})
	if err != nil {
		return httpdto.ChannelPayload{}, err
	}
	return httpdto.FromChannel(ch), nil
}

func (s *ChannelService) SetArchived(ctx context.Context, cmd commands.ArchiveChannelCommand) (httpdto.ChannelPayload, error) {
	ch, err := s.withChannel(ctx, cmd.ChannelID, func(ch *domain.Channel) error {
		if !ch.IsModerator(cmd.ActorID) {
			return chat_errors.ErrForbidden
		}
		if cmd.Archive {
			ch.Archive(time.Now())
		} else {
			ch.Unarchive()
		}
		return nil
	})
	if err != nil {
		return httpdto.ChannelPayload{}, err
	}
	return httpdto.FromChannel(ch), nil
}

func (s *ChannelService) ListPublic(ctx context.Context) ([]httpdto.ChannelPayload, error) {
	chs, err := s.repo.ListPublic(ctx)
	if err != nil {
		return nil, err
	}
	return toChannelPayloads(chs), nil
}

func (s *ChannelService) ListForUser(ctx context.Context, userID uuid.UUID) ([]httpdto.ChannelPayload, error) {
	chs, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toChannelPayloads(chs), nil
}

func (s *ChannelService) IsMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	return s.repo.IsMember(ctx, channelID, userID)
}

func (s *ChannelService) withChannel(ctx context.Context, channelID uuid.UUID, mutate func(ch *domain.Channel) error) (*domain.Channel, error) {
	s.locks.Lock(channelID)
	defer s.locks.Unlock(channelID)

	ch, err := s.repo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := mutate(ch); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

func toChannelPayloads(chs []*domain.Channel) []httpdto.ChannelPayload {
	out := make([]httpdto.ChannelPayload, 0, len(chs))
	for _, ch := range chs {
		out = append(out, httpdto.FromChannel(ch))
	}
	return out
}
