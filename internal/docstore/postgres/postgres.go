// Package postgres is the docstore driver for a Postgres-hosted backend.
// Documents are jsonb rows keyed by path; live subscriptions ride on
// LISTEN/NOTIFY: every committed write notifies the affected collection and
// a listener goroutine re-queries it and emits a fresh full snapshot.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkezele/ripple/internal/docstore"
)

const notifyChannel = "ripple_docs"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	path       text PRIMARY KEY,
	collection text NOT NULL,
	doc        jsonb NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_collection_idx ON documents (collection);
`

type Store struct {
	pool *pgxpool.Pool

	mu     sync.Mutex
	subs   map[string][]*subscription
	closed bool

	cancelListen context.CancelFunc
}

// Open connects to the backend, ensures the schema, and starts the
// notification listener.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	s := &Store{
		pool: pool,
		subs: make(map[string][]*subscription),
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s.cancelListen = cancel
	go s.listen(listenCtx)

	return s, nil
}

// Close stops the listener, closes open subscriptions, and releases the
// pool.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, subs := range s.subs {
		for _, sub := range subs {
			sub.closed = true
			close(sub.ch)
		}
	}
	s.subs = make(map[string][]*subscription)
	s.mu.Unlock()

	s.cancelListen()
	s.pool.Close()
}

func (s *Store) Get(ctx context.Context, path string, out any) error {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM documents WHERE path = $1`, path).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *Store) Set(ctx context.Context, path string, doc any) error {
	data, err := docstore.MarshalWithID(doc, lastSegment(path))
	if err != nil {
		return err
	}
	collection := collectionOf(path)
	query := `
		INSERT INTO documents (path, collection, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (path) DO UPDATE SET doc = EXCLUDED.doc`
	if _, err := s.pool.Exec(ctx, query, path, collection, data); err != nil {
		return err
	}
	return s.notify(ctx, collection)
}

func (s *Store) Create(ctx context.Context, path string, doc any) error {
	data, err := docstore.MarshalWithID(doc, lastSegment(path))
	if err != nil {
		return err
	}
	collection := collectionOf(path)
	query := `
		INSERT INTO documents (path, collection, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (path) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query, path, collection, data)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrExists
	}
	return s.notify(ctx, collection)
}

func (s *Store) Add(ctx context.Context, collection string, doc any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection+"/"+id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	return s.Mutate(ctx, path, func(data json.RawMessage) (json.RawMessage, error) {
		return docstore.MergeFields(data, fields)
	})
}

// Mutate runs the read-modify-write inside a transaction with the row
// locked, so concurrent mutations of the same document serialize instead
// of losing updates.
func (s *Store) Mutate(ctx context.Context, path string, fn docstore.MutateFunc) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var data []byte
	err = tx.QueryRow(ctx, `SELECT doc FROM documents WHERE path = $1 FOR UPDATE`, path).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return err
	}

	next, err := fn(data)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE documents SET doc = $1 WHERE path = $2`, []byte(next), path); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	return s.notify(ctx, collectionOf(path))
}

func (s *Store) Delete(ctx context.Context, path string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE path = $1`, path)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	return s.notify(ctx, collectionOf(path))
}

func (s *Store) List(ctx context.Context, collection, orderBy string) ([]docstore.Document, error) {
	rows, err := s.pool.Query(ctx, `SELECT path, doc FROM documents WHERE collection = $1`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var path string
		var data []byte
		if err := rows.Scan(&path, &data); err != nil {
			return nil, err
		}
		docs = append(docs, docstore.Document{ID: lastSegment(path), Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := docstore.SortDocs(docs, orderBy); err != nil {
		return nil, fmt.Errorf("ordering %s by %s: %w", collection, orderBy, err)
	}
	return docs, nil
}

func (s *Store) Subscribe(ctx context.Context, collection, orderBy string) (docstore.Subscription, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, docstore.ErrClosed
	}
	sub := &subscription{
		store:      s,
		collection: collection,
		orderBy:    orderBy,
		ch:         make(chan docstore.Snapshot, 1),
	}
	s.subs[collection] = append(s.subs[collection], sub)
	s.mu.Unlock()

	docs, err := s.List(ctx, collection, orderBy)
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	s.deliver(sub, docstore.Snapshot{Collection: collection, Docs: docs})
	return sub, nil
}

// deliver sends a snapshot to a subscriber unless its channel is already
// closed. Holding the lock orders delivery against Unsubscribe and Close,
// so a send can never hit a closed channel.
func (s *Store) deliver(sub *subscription, snap docstore.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.closed {
		return
	}
	trySend(sub.ch, snap)
}

// trySend delivers a snapshot without blocking: the channel holds at most
// one pending snapshot and a newer one supersedes it.
func trySend(ch chan docstore.Snapshot, snap docstore.Snapshot) {
	select {
	case ch <- snap:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *Store) notify(ctx context.Context, collection string) error {
	_, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, collection)
	return err
}

// listen holds a dedicated connection on LISTEN and fans changed
// collections out to their subscribers. If the connection dies the loop
// exits without retrying; subscribers see their channels close and must
// resubscribe.
func (s *Store) listen(ctx context.Context) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		log.Printf("docstore: acquiring listen connection: %v", err)
		s.dropSubscribers()
		return
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		log.Printf("docstore: LISTEN: %v", err)
		s.dropSubscribers()
		return
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("docstore: notification stream ended: %v", err)
				s.dropSubscribers()
			}
			return
		}
		s.emit(ctx, notification.Payload)
	}
}

func (s *Store) emit(ctx context.Context, collection string) {
	s.mu.Lock()
	subs := append([]*subscription(nil), s.subs[collection]...)
	s.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	for _, sub := range subs {
		docs, err := s.List(ctx, collection, sub.orderBy)
		if err != nil {
			log.Printf("docstore: listing %s for snapshot: %v", collection, err)
			continue
		}
		s.deliver(sub, docstore.Snapshot{Collection: collection, Docs: docs})
	}
}

func (s *Store) dropSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, subs := range s.subs {
		for _, sub := range subs {
			sub.closed = true
			close(sub.ch)
		}
	}
	s.subs = make(map[string][]*subscription)
}

type subscription struct {
	store      *Store
	collection string
	orderBy    string
	ch         chan docstore.Snapshot

	// closed is guarded by store.mu; deliver checks it before sending.
	closed bool
	once   sync.Once
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
				s.closed = true
				close(s.ch)
				break
			}
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
