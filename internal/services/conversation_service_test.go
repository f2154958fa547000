package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"campuschat/internal/events"
	"campuschat/internal/repository"
	chat_errors "campuschat/pkg/errors"
	"campuschat/pkg/logger"
)

func newConversationService() (*ConversationService, *eventRecorder) {
	rec := &eventRecorder{}
	return NewConversationService(repository.NewMemoryConversationRepository(), rec, logger.NewNop()), rec
}

func TestCreateDirectIsIdempotentPerPair(t *testing.T) {
	svc, _ := newConversationService()
	alice, bob := uuid.New(), uuid.New()

	first, err := svc.CreateDirect(context.Background(), alice, bob)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	// Same pair in the opposite order resolves to the same conversation.
	second, err := svc.CreateDirect(context.Background(), bob, alice)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("pair produced two conversations: %s and %s", first.ID, second.ID)
	}
	if len(first.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(first.Participants))
	}
}

func TestCreateDirectWithSelf(t *testing.T) {
	svc, _ := newConversationService()
	me := uuid.New()
	if _, err := svc.CreateDirect(context.Background(), me, me); !errors.Is(err, chat_errors.ErrSelfConversation) {
		t.Fatalf("err = %v, want ErrSelfConversation", err)
	}
}

func TestCreateGroupRequiresTitle(t *testing.T) {
	svc, _ := newConversationService()
	if _, err := svc.CreateGroup(context.Background(), "  ", uuid.New(), []uuid.UUID{uuid.New()}); !errors.Is(err, chat_errors.ErrTitleRequired) {
		t.Fatalf("err = %v, want ErrTitleRequired", err)
	}
}

func TestCreateGroupIncludesCreator(t *testing.T) {
	svc, _ := newConversationService()
	creator := uuid.New()
	payload, err := svc.CreateGroup(context.Background(), "dorm 12", creator, []uuid.UUID{uuid.New(), uuid.New()})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	found := false
	for _, id := range payload.Participants {
		if id == creator {
			found = true
		}
	}
	if !found {
		t.Fatalf("creator missing from participants")
	}
}

func TestArchiveUnarchiveIdempotent(t *testing.T) {
	svc, _ := newConversationService()
	alice, bob := uuid.New(), uuid.New()
	conv, err := svc.CreateDirect(context.Background(), alice, bob)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := svc.SetArchived(context.Background(), conv.ID, alice, true)
		if err != nil {
			t.Fatalf("archive #%d: %v", i+1, err)
		}
		if !got.Archived {
			t.Fatalf("archive #%d left conversation live", i+1)
		}
	}

	got, err := svc.SetArchived(context.Background(), conv.ID, bob, false)
	if err != nil {
		t.Fatalf("unarchive: %v", err)
	}
	if got.Archived {
		t.Fatalf("unarchive did not restore the conversation")
	}

	if _, err := svc.SetArchived(context.Background(), conv.ID, uuid.New(), true); !errors.Is(err, chat_errors.ErrNotParticipant) {
		t.Fatalf("archive by outsider: err = %v, want ErrNotParticipant", err)
	}
}

func TestGroupMembershipEvents(t *testing.T) {
	svc, rec := newConversationService()
	creator, member, newcomer := uuid.New(), uuid.New(), uuid.New()
	conv, err := svc.CreateGroup(context.Background(), "club", creator, []uuid.UUID{member})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	if _, err := svc.AddParticipant(context.Background(), conv.ID, creator, newcomer); err != nil {
		t.Fatalf("AddParticipant: %v", err)
	}
	if got := len(rec.named(events.EventUserJoined)); got != 1 {
		t.Fatalf("UserJoined events = %d, want 1", got)
	}

	if _, err := svc.RemoveParticipant(context.Background(), conv.ID, newcomer, newcomer); err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}
	if got := len(rec.named(events.EventUserLeft)); got != 1 {
		t.Fatalf("UserLeft events = %d, want 1", got)
	}

	// Outsiders cannot mutate membership.
	if _, err := svc.AddParticipant(context.Background(), conv.ID, uuid.New(), uuid.New()); !errors.Is(err, chat_errors.ErrNotParticipant) {
		t.Fatalf("err = %v, want ErrNotParticipant", err)
	}
}

func TestDirectConversationMembershipFrozen(t *testing.T) {
	svc, _ := newConversationService()
	alice, bob := uuid.New(), uuid.New()
	conv, err := svc.CreateDirect(context.Background(), alice, bob)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.AddParticipant(context.Background(), conv.ID, alice, uuid.New()); !errors.Is(err, chat_errors.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestGetByIDRequiresParticipant(t *testing.T) {
	svc, _ := newConversationService()
	alice, bob := uuid.New(), uuid.New()
	conv, err := svc.CreateDirect(context.Background(), alice, bob)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.GetByID(context.Background(), conv.ID, uuid.New()); !errors.Is(err, chat_errors.ErrNotParticipant) {
		t.Fatalf("err = %v, want ErrNotParticipant", err)
	}
	if _, err := svc.GetByID(context.Background(), conv.ID, bob); err != nil {
		t.Fatalf("GetByID by participant: %v", err)
	}
}
