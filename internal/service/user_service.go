package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dkezele/ripple/internal/docstore"
	"github.com/dkezele/ripple/internal/domain"
	"github.com/dkezele/ripple/pkg/validator"
)

var (
	ErrUnknownAvatar      = errors.New("avatar is not part of the catalog")
	ErrInvalidDisplayName = errors.New("invalid display name")
)

type UserService struct {
	store   docstore.Store
	toaster Toaster
}

func NewUserService(store docstore.Store) *UserService {
	return &UserService{store: store}
}

// SetToaster sets the transient-notice sink (optional dependency).
func (s *UserService) SetToaster(t Toaster) {
	s.toaster = t
}

func (s *UserService) Get(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := s.store.Get(ctx, docstore.UserPath(userID), &u)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns all users in registration order.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	docs, err := s.store.List(ctx, docstore.UsersCollection, "created_at")
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(docs))
	for _, doc := range docs {
		var u domain.User
		if err := doc.Decode(&u); err != nil {
			return nil, err
		}
		u.ID = doc.ID
		users = append(users, u)
	}
	return users, nil
}

// Touch refreshes the user's last-active timestamp. Presence is derived
// from it at read time against the 3-minute threshold; nothing stores an
// online flag.
func (s *UserService) Touch(ctx context.Context, userID string) error {
	err := s.store.Update(ctx, docstore.UserPath(userID), map[string]any{
		"last_active_at": domain.Now(),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// SetDisplayName changes the user's display name and surfaces the outcome
// as a toast.
func (s *UserService) SetDisplayName(ctx context.Context, userID, displayName string) error {
	if errs := validator.ValidateDisplayName(displayName); errs.HasErrors() {
		return fmt.Errorf("%w: %v", ErrInvalidDisplayName, errs)
	}
	err := s.store.Update(ctx, docstore.UserPath(userID), map[string]any{
		"display_name": displayName,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		s.toast("Could not change your name, try again")
		return fmt.Errorf("updating display name: %w", err)
	}
	s.toast("Name changed to " + displayName)
	return nil
}

// SetAvatar switches the user to another catalog avatar.
func (s *UserService) SetAvatar(ctx context.Context, userID string, avatar domain.Avatar) error {
	if !avatar.Valid() {
		return ErrUnknownAvatar
	}
	err := s.store.Update(ctx, docstore.UserPath(userID), map[string]any{
		"avatar": avatar,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

// Subscribe opens a live feed of the user directory, used by the member
// list and the @ autocomplete.
func (s *UserService) Subscribe(ctx context.Context) (*UserFeed, error) {
	sub, err := s.store.Subscribe(ctx, docstore.UsersCollection, "created_at")
	if err != nil {
		return nil, fmt.Errorf("subscribing to users: %w", err)
	}
	return newUserFeed(sub), nil
}

func (s *UserService) toast(message string) {
	if s.toaster != nil {
		s.toaster.Toast(message)
	}
}

// UserFeed adapts a docstore subscription into typed user snapshots.
type UserFeed struct {
	sub docstore.Subscription
	ch  chan []domain.User
}

func newUserFeed(sub docstore.Subscription) *UserFeed {
	f := &UserFeed{sub: sub, ch: make(chan []domain.User, 1)}
	go f.run()
	return f
}

func (f *UserFeed) run() {
	defer close(f.ch)
	for snap := range f.sub.Snapshots() {
		users := make([]domain.User, 0, len(snap.Docs))
		ok := true
		for _, doc := range snap.Docs {
			var u domain.User
			if err := doc.Decode(&u); err != nil {
				log.Printf("users: decoding snapshot: %v", err)
				ok = false
				break
			}
			u.ID = doc.ID
			users = append(users, u)
		}
		if !ok {
			continue
		}
		select {
		case f.ch <- users:
		default:
			select {
			case <-f.ch:
			default:
			}
			select {
			case f.ch <- users:
			default:
			}
		}
	}
}

func (f *UserFeed) Users() <-chan []domain.User { return f.ch }

func (f *UserFeed) Unsubscribe() { f.sub.Unsubscribe() }
