package dbadapter

import (
	"context"
	"sync"
)

// memStore is an in-process Store used by tests and by MuxManager's
// integration tests in place of a real swss/redis connection.
type memStore struct {
	mu     sync.Mutex
	tables map[string]*memTable
	subs   map[string]*memSubscriber
}

// NewMemStore builds an in-memory Store. Tables and subscribers are
// created lazily on first access and share state: writes to a table a
// subscriber was opened against are delivered as Notifications.
func NewMemStore() Store {
	return &memStore{
		tables: make(map[string]*memTable),
		subs:   make(map[string]*memSubscriber),
	}
}

func (s *memStore) Table(name string) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		t = &memTable{name: name, rows: make(map[string]FieldValues)}
		s.tables[name] = t
	}
	return t, nil
}

func (s *memStore) Subscriber(name string) (Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		t = &memTable{name: name, rows: make(map[string]FieldValues)}
		s.tables[name] = t
	}
	sub, ok := s.subs[name]
	if !ok {
		sub = &memSubscriber{ch: make(chan Notification, 64)}
		s.subs[name] = sub
		t.subscribers = append(t.subscribers, sub)
	}
	return sub, nil
}

func (s *memStore) Close() error { return nil }

type memTable struct {
	mu          sync.Mutex
	name        string
	rows        map[string]FieldValues
	subscribers []*memSubscriber
}

func (t *memTable) Set(ctx context.Context, key string, fields FieldValues) error {
	t.mu.Lock()
	t.rows[key] = fields
	subs := append([]*memSubscriber(nil), t.subscribers...)
	t.mu.Unlock()

	for _, s := range subs {
		s.publish(Notification{Key: key, Op: OpSet, Fields: fields})
	}
	return nil
}

func (t *memTable) Get(ctx context.Context, key string) (FieldValues, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fv, ok := t.rows[key]
	if !ok {
		return nil, notFound(t.name)
	}
	return fv, nil
}

func (t *memTable) Del(ctx context.Context, key string) error {
	t.mu.Lock()
	delete(t.rows, key)
	subs := append([]*memSubscriber(nil), t.subscribers...)
	t.mu.Unlock()

	for _, s := range subs {
		s.publish(Notification{Key: key, Op: OpDel})
	}
	return nil
}

type memSubscriber struct {
	ch chan Notification
}

func (s *memSubscriber) Notifications() <-chan Notification { return s.ch }

// Run is a no-op for memSubscriber: publish() already delivers directly
// to the channel. It blocks until ctx is cancelled, matching the real
// Subscriber contract of running until told to stop.
func (s *memSubscriber) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *memSubscriber) publish(n Notification) {
	select {
	case s.ch <- n:
	default:
		// Slow consumer: drop rather than block the writer, matching a
		// best-effort state-table subscription.
	}
}
