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

var (
	ErrEmptyMessage    = errors.New("message text is empty")
	ErrNoContext       = errors.New("no active context")
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidReaction = errors.New("reaction kind and user id are required")
)

// MessageService maintains the live message list for one context (a
// channel or a conversation) and performs all mutations against that
// context's nested message collection. Build a fresh one whenever the
// resolved context changes.
//
// Ownership checks (who may edit or delete) are the consuming layer's
// concern, not enforced here.
type MessageService struct {
	store  docstore.Store
	parent domain.Context
}

func NewMessageService(store docstore.Store, parent domain.Context) *MessageService {
	return &MessageService{store: store, parent: parent}
}

// Context returns the context this service is bound to.
func (s *MessageService) Context() domain.Context { return s.parent }

func (s *MessageService) collection() string {
	return docstore.MessagesCollection(s.parent.DocPath())
}

// Send creates a message in the bound context and bumps the parent's
// last-message timestamp. Whitespace-only text is rejected.
func (s *MessageService) Send(ctx context.Context, text, senderID string) (*domain.Message, error) {
	if !domain.ValidMessageText(text) {
		return nil, ErrEmptyMessage
	}
	if s.parent.DocPath() == "" {
		return nil, ErrNoContext
	}

	now := domain.Now()
	msg := &domain.Message{
		Text:       text,
		SenderID:   senderID,
		CreatedAt:  now,
		EditedAt:   now,
		ReplyCount: 0,
	}

	id, err := s.store.Add(ctx, s.collection(), msg)
	if err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}
	msg.ID = id

	// Last-message bump is a separate write; the subscription emission
	// reflecting the new message may arrive before or after it lands.
	if err := s.store.Update(ctx, s.parent.DocPath(), map[string]any{
		"last_message_at": domain.Now(),
	}); err != nil {
		log.Printf("messages: bumping last_message_at for %s: %v", s.parent.DocPath(), err)
	}

	return msg, nil
}

// Edit replaces a message's text and stamps its edit time. Reply count and
// reactions are untouched.
func (s *MessageService) Edit(ctx context.Context, messageID, newText string) error {
	if !domain.ValidMessageText(newText) {
		return ErrEmptyMessage
	}
	err := s.store.Update(ctx, docstore.MessagePath(s.parent.DocPath(), messageID), map[string]any{
		"text":      newText,
		"edited_at": domain.Now(),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
	}
	return nil
}

// Delete removes a message and every thread reply beneath it, replies
// first. If the parent delete fails after replies were removed there is no
// rollback; the thread stays gone.
func (s *MessageService) Delete(ctx context.Context, messageID string) error {
	threadPath := docstore.ThreadCollection(s.parent.DocPath(), messageID)
	replies, err := s.store.List(ctx, threadPath, "created_at")
	if err != nil {
		return fmt.Errorf("listing thread replies: %w", err)
	}
	for _, reply := range replies {
		if err := s.store.Delete(ctx, threadPath+"/"+reply.ID); err != nil {
			return fmt.Errorf("deleting thread reply %s: %w", reply.ID, err)
		}
	}
	if err := s.store.Delete(ctx, docstore.MessagePath(s.parent.DocPath(), messageID)); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	return nil
}

// ToggleReaction flips userID's membership in the message's reaction set
// for kind, dropping the key when its set empties. The read-modify-write
// runs under the store's per-document mutation primitive. Calling it twice
// flips state twice; callers must not retry a toggle they are unsure about.
func (s *MessageService) ToggleReaction(ctx context.Context, messageID, kind, userID string) error {
	if kind == "" || userID == "" {
		return ErrInvalidReaction
	}
	err := s.store.Mutate(ctx, docstore.MessagePath(s.parent.DocPath(), messageID), toggleReaction(kind, userID))
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("toggling reaction: %w", err)
	}
	return nil
}

// List returns the context's messages oldest first, as a one-shot read.
// Live consumers should use Subscribe instead.
func (s *MessageService) List(ctx context.Context) ([]domain.Message, error) {
	if s.parent.DocPath() == "" {
		return nil, ErrNoContext
	}
	docs, err := s.store.List(ctx, s.collection(), "created_at")
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return decodeMessages(docs)
}

// Subscribe opens the live ordered message feed for the bound context.
func (s *MessageService) Subscribe(ctx context.Context) (*MessageFeed, error) {
	if s.parent.DocPath() == "" {
		return nil, ErrNoContext
	}
	sub, err := s.store.Subscribe(ctx, s.collection(), "created_at")
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", s.collection(), err)
	}
	return newMessageFeed(sub), nil
}

func toggleReaction(kind, userID string) docstore.MutateFunc {
	return func(data json.RawMessage) (json.RawMessage, error) {
		var msg domain.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, err
		}
		msg.ToggleReaction(kind, userID)
		return json.Marshal(&msg)
	}
}

// MessageFeed adapts a docstore subscription into typed message snapshots.
// Every emission is the complete ordered list; consumers replace their
// local slice, never merge.
type MessageFeed struct {
	sub docstore.Subscription
	ch  chan []domain.Message
}

func newMessageFeed(sub docstore.Subscription) *MessageFeed {
	f := &MessageFeed{sub: sub, ch: make(chan []domain.Message, 1)}
	go f.run()
	return f
}

func (f *MessageFeed) run() {
	defer close(f.ch)
	for snap := range f.sub.Snapshots() {
		msgs, err := decodeMessages(snap.Docs)
		if err != nil {
			log.Printf("messages: decoding snapshot for %s: %v", snap.Collection, err)
			continue
		}
		select {
		case f.ch <- msgs:
		default:
			select {
			case <-f.ch:
			default:
			}
			select {
			case f.ch <- msgs:
			default:
			}
		}
	}
}

// Messages yields full snapshots; the channel closes after Unsubscribe or
// when the underlying transport dies (no automatic resubscription).
func (f *MessageFeed) Messages() <-chan []domain.Message { return f.ch }

func (f *MessageFeed) Unsubscribe() { f.sub.Unsubscribe() }

func decodeMessages(docs []docstore.Document) ([]domain.Message, error) {
	msgs := make([]domain.Message, 0, len(docs))
	for _, doc := range docs {
		var msg domain.Message
		if err := doc.Decode(&msg); err != nil {
			return nil, err
		}
		msg.ID = doc.ID
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
