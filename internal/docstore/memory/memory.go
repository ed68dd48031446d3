// Package memory is an in-process docstore driver. It backs tests and
// single-node deployments: documents live in a map, and every change to a
// collection re-emits a full ordered snapshot to that collection's
// subscribers.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dkezele/ripple/internal/docstore"
)

type Store struct {
	mu     sync.Mutex
	docs   map[string]json.RawMessage
	subs   map[string][]*subscription
	closed bool
}

func New() *Store {
	return &Store{
		docs: make(map[string]json.RawMessage),
		subs: make(map[string][]*subscription),
	}
}

// Close drops all documents and closes every open subscription channel.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, subs := range s.subs {
		for _, sub := range subs {
			close(sub.ch)
		}
	}
	s.subs = make(map[string][]*subscription)
	s.docs = make(map[string]json.RawMessage)
}

func (s *Store) Get(ctx context.Context, path string, out any) error {
	s.mu.Lock()
	data, ok := s.docs[path]
	s.mu.Unlock()
	if !ok {
		return docstore.ErrNotFound
	}
	return json.Unmarshal(data, out)
}

func (s *Store) Set(ctx context.Context, path string, doc any) error {
	data, err := docstore.MarshalWithID(doc, lastSegment(path))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}
	s.docs[path] = data
	s.notifyLocked(collectionOf(path))
	return nil
}

func (s *Store) Create(ctx context.Context, path string, doc any) error {
	data, err := docstore.MarshalWithID(doc, lastSegment(path))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}
	if _, ok := s.docs[path]; ok {
		return docstore.ErrExists
	}
	s.docs[path] = data
	s.notifyLocked(collectionOf(path))
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, doc any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection+"/"+id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}
	data, ok := s.docs[path]
	if !ok {
		return docstore.ErrNotFound
	}
	merged, err := docstore.MergeFields(data, fields)
	if err != nil {
		return err
	}
	s.docs[path] = merged
	s.notifyLocked(collectionOf(path))
	return nil
}

func (s *Store) Mutate(ctx context.Context, path string, fn docstore.MutateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}
	data, ok := s.docs[path]
	if !ok {
		return docstore.ErrNotFound
	}
	next, err := fn(data)
	if err != nil {
		return err
	}
	s.docs[path] = next
	s.notifyLocked(collectionOf(path))
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}
	if _, ok := s.docs[path]; !ok {
		return nil
	}
	delete(s.docs, path)
	s.notifyLocked(collectionOf(path))
	return nil
}

func (s *Store) List(ctx context.Context, collection, orderBy string) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(collection, orderBy)
}

func (s *Store) Subscribe(ctx context.Context, collection, orderBy string) (docstore.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, docstore.ErrClosed
	}
	sub := &subscription{
		store:      s,
		collection: collection,
		orderBy:    orderBy,
		ch:         make(chan docstore.Snapshot, 1),
	}
	s.subs[collection] = append(s.subs[collection], sub)

	docs, err := s.listLocked(collection, orderBy)
	if err != nil {
		return nil, err
	}
	sub.ch <- docstore.Snapshot{Collection: collection, Docs: docs}
	return sub, nil
}

// listLocked orders documents ascending by the orderBy field, normalized as
// a timestamp; missing fields sort first, ties break on id.
func (s *Store) listLocked(collection, orderBy string) ([]docstore.Document, error) {
	prefix := collection + "/"
	var docs []docstore.Document
	for path, data := range s.docs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		id := path[len(prefix):]
		if strings.Contains(id, "/") {
			continue // document of a nested collection
		}
		docs = append(docs, docstore.Document{ID: id, Data: data})
	}
	if err := docstore.SortDocs(docs, orderBy); err != nil {
		return nil, fmt.Errorf("ordering %s by %s: %w", collection, orderBy, err)
	}
	return docs, nil
}

// notifyLocked re-emits the collection's full snapshot to every subscriber.
// Each subscriber channel holds at most one pending snapshot; a slow
// consumer is coalesced onto the newest state, which is safe because every
// emission is a complete replacement.
func (s *Store) notifyLocked(collection string) {
	subs := s.subs[collection]
	if len(subs) == 0 {
		return
	}
	for _, sub := range subs {
		docs, err := s.listLocked(collection, sub.orderBy)
		if err != nil {
			continue
		}
		snap := docstore.Snapshot{Collection: collection, Docs: docs}
		select {
		case sub.ch <- snap:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- snap:
			default:
			}
		}
	}
}

type subscription struct {
	store      *Store
	collection string
	orderBy    string
	ch         chan docstore.Snapshot
	once       sync.Once
}

func (s *subscription) Snapshots() <-chan docstore.Snapshot { return s.ch }

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		st := s.store
		st.mu.Lock()
		defer st.mu.Unlock()
		subs := st.subs[s.collection]
		for i, sub := range subs {
			if sub == s {
				st.subs[s.collection] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if !st.closed {
			close(s.ch)
		}
	})
}

func collectionOf(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

func lastSegment(path string) string {
	i := strings.LastIndex(path, "/")
	return path[i+1:]
}
