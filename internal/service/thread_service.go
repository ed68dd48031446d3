package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/dkezele/ripple/internal/docstore"
	"github.com/dkezele/ripple/internal/domain"
)

// ThreadService is the message store for one thread panel: the reply
// sub-collection nested under a single parent message. On top of the usual
// message operations it keeps the parent's reply count and last-reply
// timestamp in step.
type ThreadService struct {
	store    docstore.Store
	parent   domain.Context
	parentID string
}

func NewThreadService(store docstore.Store, parent domain.Context, parentMessageID string) *ThreadService {
	return &ThreadService{store: store, parent: parent, parentID: parentMessageID}
}

func (s *ThreadService) collection() string {
	return docstore.ThreadCollection(s.parent.DocPath(), s.parentID)
}

func (s *ThreadService) parentPath() string {
	return docstore.MessagePath(s.parent.DocPath(), s.parentID)
}

// Key returns the scroll-follow key for this thread panel, distinct from
// the surrounding context's key so the two panes never follow each other.
func (s *ThreadService) Key() string {
	return "thread-" + s.parentID
}

// SendReply appends a reply to the thread and increments the parent's
// reply count and last-reply timestamp.
func (s *ThreadService) SendReply(ctx context.Context, text, senderID string) (*domain.Message, error) {
	if !domain.ValidMessageText(text) {
		return nil, ErrEmptyMessage
	}
	if s.parent.DocPath() == "" || s.parentID == "" {
		return nil, ErrNoContext
	}

	now := domain.Now()
	reply := &domain.Message{
		Text:      text,
		SenderID:  senderID,
		CreatedAt: now,
		EditedAt:  now,
	}

	id, err := s.store.Add(ctx, s.collection(), reply)
	if err != nil {
		return nil, fmt.Errorf("creating thread reply: %w", err)
	}
	reply.ID = id

	if err := s.store.Mutate(ctx, s.parentPath(), adjustReplyCount(+1, now)); err != nil {
		log.Printf("thread: bumping reply count on %s: %v", s.parentPath(), err)
	}

	return reply, nil
}

// EditReply updates a reply's text and edit time.
func (s *ThreadService) EditReply(ctx context.Context, replyID, newText string) error {
	if !domain.ValidMessageText(newText) {
		return ErrEmptyMessage
	}
	err := s.store.Update(ctx, s.collection()+"/"+replyID, map[string]any{
		"text":      newText,
		"edited_at": domain.Now(),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("updating thread reply: %w", err)
	}
	return nil
}

// DeleteReply removes one reply and decrements the parent's reply count.
func (s *ThreadService) DeleteReply(ctx context.Context, replyID string) error {
	if err := s.store.Delete(ctx, s.collection()+"/"+replyID); err != nil {
		return fmt.Errorf("deleting thread reply: %w", err)
	}
	if err := s.store.Mutate(ctx, s.parentPath(), adjustReplyCount(-1, domain.Timestamp{})); err != nil {
		log.Printf("thread: dropping reply count on %s: %v", s.parentPath(), err)
	}
	return nil
}

// ToggleReaction flips a reaction on one reply.
func (s *ThreadService) ToggleReaction(ctx context.Context, replyID, kind, userID string) error {
	if kind == "" || userID == "" {
		return ErrInvalidReaction
	}
	err := s.store.Mutate(ctx, s.collection()+"/"+replyID, toggleReaction(kind, userID))
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("toggling thread reaction: %w", err)
	}
	return nil
}

// ListReplies returns the thread's replies oldest first, as a one-shot
// read.
func (s *ThreadService) ListReplies(ctx context.Context) ([]domain.Message, error) {
	if s.parent.DocPath() == "" || s.parentID == "" {
		return nil, ErrNoContext
	}
	docs, err := s.store.List(ctx, s.collection(), "created_at")
	if err != nil {
		return nil, fmt.Errorf("listing thread replies: %w", err)
	}
	return decodeMessages(docs)
}

// Subscribe opens the live ordered reply feed for the thread.
func (s *ThreadService) Subscribe(ctx context.Context) (*MessageFeed, error) {
	if s.parent.DocPath() == "" || s.parentID == "" {
		return nil, ErrNoContext
	}
	sub, err := s.store.Subscribe(ctx, s.collection(), "created_at")
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", s.collection(), err)
	}
	return newMessageFeed(sub), nil
}

// adjustReplyCount mutates the parent message's reply bookkeeping. A
// non-zero lastReply also stamps last_reply_at; the count never goes below
// zero.
func adjustReplyCount(delta int, lastReply domain.Timestamp) docstore.MutateFunc {
	return func(data json.RawMessage) (json.RawMessage, error) {
		var msg domain.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		msg.ReplyCount += delta
		if msg.ReplyCount < 0 {
			msg.ReplyCount = 0
		}
		if !lastReply.IsZero() {
			msg.LastReplyAt = lastReply
		}
		return json.Marshal(&msg)
	}
}
