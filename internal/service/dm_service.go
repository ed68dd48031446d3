package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkezele/ripple/internal/docstore"
	"github.com/dkezele/ripple/internal/domain"
)

var (
	ErrCannotDMSelf = errors.New("cannot start a conversation with yourself")
	ErrUserNotFound = errors.New("user not found")
)

type DMService struct {
	store docstore.Store
}

func NewDMService(store docstore.Store) *DMService {
	return &DMService{store: store}
}

// GetOrCreateConversation finds or creates the 1:1 conversation between
// two users. The derived id doubles as the document key, so two racing
// calls converge on the same document: the loser's Create collides and
// reads the winner's.
func (s *DMService) GetOrCreateConversation(ctx context.Context, userID, otherUserID string) (*domain.Conversation, error) {
	if userID == otherUserID {
		return nil, ErrCannotDMSelf
	}

	var other domain.User
	if err := s.store.Get(ctx, docstore.UserPath(otherUserID), &other); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	conv := domain.NewConversation(userID, otherUserID)
	err := s.store.Create(ctx, docstore.ConversationPath(conv.ID), conv)
	if errors.Is(err, docstore.ErrExists) {
		var existing domain.Conversation
		if err := s.store.Get(ctx, docstore.ConversationPath(conv.ID), &existing); err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return conv, nil
}

// Get loads one conversation by id.
func (s *DMService) Get(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := s.store.Get(ctx, docstore.ConversationPath(conversationID), &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations returns every conversation userID participates in,
// oldest first.
func (s *DMService) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	docs, err := s.store.List(ctx, docstore.ConversationsCollection, "created_at")
	if err != nil {
		return nil, err
	}
	convs := make([]domain.Conversation, 0, len(docs))
	for _, doc := range docs {
		var conv domain.Conversation
		if err := doc.Decode(&conv); err != nil {
			return nil, err
		}
		conv.ID = doc.ID
		if conv.HasParticipant(userID) {
			convs = append(convs, conv)
		}
	}
	return convs, nil
}
