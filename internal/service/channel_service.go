package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/dkezele/ripple/internal/docstore"
	"github.com/dkezele/ripple/internal/domain"
	"github.com/dkezele/ripple/pkg/validator"
)

var (
	ErrChannelNotFound  = errors.New("channel not found")
	ErrChannelNameTaken = errors.New("channel name already exists")
	ErrInvalidChannel   = errors.New("invalid channel input")
	ErrNotChannelMember = errors.New("user is not a member of this channel")
)

type ChannelService struct {
	store docstore.Store
}

func NewChannelService(store docstore.Store) *ChannelService {
	return &ChannelService{store: store}
}

type CreateChannelInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
}

// Create makes a channel with the creator as first member and admin. Name
// uniqueness is case-insensitive and backed by a name-keyed lookup
// document, so two racing creators cannot both win: exactly one Create on
// the name key succeeds.
func (s *ChannelService) Create(ctx context.Context, userID string, input CreateChannelInput) (*domain.Channel, error) {
	if errs := validator.ValidateChannel(input.Name); errs.HasErrors() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChannel, errs)
	}

	id := uuid.NewString()
	if err := s.store.Create(ctx, docstore.ChannelNamePath(input.Name), map[string]any{
		"channel_id": id,
		"name":       input.Name,
	}); err != nil {
		if errors.Is(err, docstore.ErrExists) {
			return nil, ErrChannelNameTaken
		}
		return nil, fmt.Errorf("reserving channel name: %w", err)
	}

	ch := &domain.Channel{
		ID:          id,
		Name:        input.Name,
		Description: input.Description,
		Members:     []string{userID},
		Admins:      []string{userID},
		CreatedBy:   userID,
		Private:     input.Private,
		CreatedAt:   domain.Now(),
	}
	if err := s.store.Set(ctx, docstore.ChannelPath(id), ch); err != nil {
		// Name key stays reserved; there is no rollback across documents.
		log.Printf("channels: name %q reserved but channel write failed: %v", input.Name, err)
		return nil, fmt.Errorf("creating channel: %w", err)
	}

	return ch, nil
}

func (s *ChannelService) Get(ctx context.Context, channelID string) (*domain.Channel, error) {
	var ch domain.Channel
	err := s.store.Get(ctx, docstore.ChannelPath(channelID), &ch)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// RequireMember checks that userID belongs to the channel.
func (s *ChannelService) RequireMember(ctx context.Context, channelID, userID string) error {
	ch, err := s.Get(ctx, channelID)
	if err != nil {
		return err
	}
	if !ch.HasMember(userID) {
		return ErrNotChannelMember
	}
	return nil
}

// List returns all channels in creation order.
func (s *ChannelService) List(ctx context.Context) ([]domain.Channel, error) {
	docs, err := s.store.List(ctx, docstore.ChannelsCollection, "created_at")
	if err != nil {
		return nil, err
	}
	channels := make([]domain.Channel, 0, len(docs))
	for _, doc := range docs {
		var ch domain.Channel
		if err := doc.Decode(&ch); err != nil {
			return nil, err
		}
		ch.ID = doc.ID
		channels = append(channels, ch)
	}
	return channels, nil
}

// Join adds userID to the membership list. The add runs under the store's
// per-document mutation, so two simultaneous joins both land.
func (s *ChannelService) Join(ctx context.Context, channelID, userID string) error {
	err := s.store.Mutate(ctx, docstore.ChannelPath(channelID), func(data json.RawMessage) (json.RawMessage, error) {
		var ch domain.Channel
		if err := json.Unmarshal(data, &ch); err != nil {
			return nil, err
		}
		if !ch.HasMember(userID) {
			ch.Members = append(ch.Members, userID)
		}
		return json.Marshal(&ch)
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrChannelNotFound
	}
	return err
}

// Leave removes userID from the membership and admin lists.
func (s *ChannelService) Leave(ctx context.Context, channelID, userID string) error {
	err := s.store.Mutate(ctx, docstore.ChannelPath(channelID), func(data json.RawMessage) (json.RawMessage, error) {
		var ch domain.Channel
		if err := json.Unmarshal(data, &ch); err != nil {
			return nil, err
		}
		ch.Members = remove(ch.Members, userID)
		ch.Admins = remove(ch.Admins, userID)
		return json.Marshal(&ch)
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrChannelNotFound
	}
	return err
}

// UpdateDescription replaces the channel description.
func (s *ChannelService) UpdateDescription(ctx context.Context, channelID, description string) error {
	err := s.store.Update(ctx, docstore.ChannelPath(channelID), map[string]any{
		"description": description,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrChannelNotFound
	}
	return err
}

// Subscribe opens a live feed of the channel catalog, used by the channel
// sidebar and the # autocomplete.
func (s *ChannelService) Subscribe(ctx context.Context) (*ChannelFeed, error) {
	sub, err := s.store.Subscribe(ctx, docstore.ChannelsCollection, "created_at")
	if err != nil {
		return nil, fmt.Errorf("subscribing to channels: %w", err)
	}
	return newChannelFeed(sub), nil
}

// ChannelFeed adapts a docstore subscription into typed channel snapshots.
type ChannelFeed struct {
	sub docstore.Subscription
	ch  chan []domain.Channel
}

func newChannelFeed(sub docstore.Subscription) *ChannelFeed {
	f := &ChannelFeed{sub: sub, ch: make(chan []domain.Channel, 1)}
	go f.run()
	return f
}

func (f *ChannelFeed) run() {
	defer close(f.ch)
	for snap := range f.sub.Snapshots() {
		channels := make([]domain.Channel, 0, len(snap.Docs))
		ok := true
		for _, doc := range snap.Docs {
			var ch domain.Channel
			if err := doc.Decode(&ch); err != nil {
				log.Printf("channels: decoding snapshot: %v", err)
				ok = false
				break
			}
			ch.ID = doc.ID
			channels = append(channels, ch)
		}
		if !ok {
			continue
		}
		select {
		case f.ch <- channels:
		default:
			select {
			case <-f.ch:
			default:
			}
			select {
			case f.ch <- channels:
			default:
			}
		}
	}
}

func (f *ChannelFeed) Channels() <-chan []domain.Channel { return f.ch }

func (f *ChannelFeed) Unsubscribe() { f.sub.Unsubscribe() }

func remove(ids []string, id string) []string {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
