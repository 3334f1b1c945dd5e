package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore is the in-process substitute for the Redis store, used by
// tests and local runs without a Redis. A single mutex serializes all
// mutations, which trivially satisfies the per-entity atomicity the
// engine relies on.
type MemoryStore struct {
	mu      sync.Mutex
	docs    map[string]map[string]map[string]json.RawMessage
	order   map[string][]string
	windows map[string]*rateWindow
}

type rateWindow struct {
	count int64
	reset time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string]map[string]map[string]json.RawMessage),
		order:   make(map[string][]string),
		windows: make(map[string]*rateWindow),
	}
}

func (s *MemoryStore) collection(name string) map[string]map[string]json.RawMessage {
	col, ok := s.docs[name]
	if !ok {
		col = make(map[string]map[string]json.RawMessage)
		s.docs[name] = col
	}
	return col
}

func (s *MemoryStore) Insert(ctx context.Context, collection string, doc any) (string, error) {
	id, fields, err := prepareInsert(doc)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(collection)
	if _, exists := col[id]; exists {
		return "", ErrConflict
	}
	col[id] = fields
	s.order[collection] = append(s.order[collection], id)

	return id, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, collection, id string, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, ok := s.collection(collection)[id]
	if !ok {
		return ErrNoDoc
	}
	return decodeFields(fields, out)
}

func (s *MemoryStore) FindOne(ctx context.Context, collection string, filter Filter, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(collection)
	for _, id := range s.order[collection] {
		fields, ok := col[id]
		if !ok {
			continue
		}
		if matchesFilter(fields, filter) {
			return decodeFields(fields, out)
		}
	}
	return ErrNoDoc
}

func (s *MemoryStore) FindMany(ctx context.Context, collection string, filter Filter, limit int64, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(collection)
	var docs [][]byte
	for _, id := range s.order[collection] {
		fields, ok := col[id]
		if !ok || !matchesFilter(fields, filter) {
			continue
		}
		docs = append(docs, fieldsJSON(fields))
		if limit > 0 && int64(len(docs)) >= limit {
			break
		}
	}
	return decodeList(docs, out)
}

func (s *MemoryStore) UpdateAndReturn(ctx context.Context, collection, id string, guard Filter, patch Patch, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, ok := s.collection(collection)[id]
	if !ok {
		return ErrNoDoc
	}
	if !matchesFilter(fields, guard) {
		return ErrConflict
	}

	for k, v := range patch {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal patch field %s: %v", k, err)
		}
		fields[k] = raw
	}
	bumpRev(fields)
	stampUpdated(fields)

	return decodeFields(fields, out)
}

func (s *MemoryStore) IncrementAndReturn(ctx context.Context, collection, id string, deltas Deltas, floors []string, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, ok := s.collection(collection)[id]
	if !ok {
		return ErrNoDoc
	}

	// Stage every change and check floors before touching the document so
	// a violation leaves it exactly as it was.
	scalars := make(map[string]int64)
	parents := make(map[string]map[string]int64)

	for path, delta := range deltas {
		if parent, child, ok := splitPath(path); ok {
			tbl, staged := parents[parent]
			if !staged {
				tbl = make(map[string]int64)
				if raw, exists := fields[parent]; exists {
					if err := json.Unmarshal(raw, &tbl); err != nil {
						return fmt.Errorf("field %s is not a numeric map: %v", parent, err)
					}
				}
				parents[parent] = tbl
			}
			next := tbl[child] + delta
			if next < 0 && containsPath(floors, path) {
				return ErrFloor
			}
			tbl[child] = next
			continue
		}

		cur, staged := scalars[path]
		if !staged {
			if raw, exists := fields[path]; exists {
				if err := json.Unmarshal(raw, &cur); err != nil {
					return fmt.Errorf("field %s is not numeric: %v", path, err)
				}
			}
		}
		next := cur + delta
		if next < 0 && containsPath(floors, path) {
			return ErrFloor
		}
		scalars[path] = next
	}

	for field, value := range scalars {
		fields[field], _ = json.Marshal(value)
	}
	for field, tbl := range parents {
		raw, err := json.Marshal(tbl)
		if err != nil {
			return fmt.Errorf("failed to marshal field %s: %v", field, err)
		}
		fields[field] = raw
	}
	bumpRev(fields)
	stampUpdated(fields)

	return decodeFields(fields, out)
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(collection)
	if _, ok := col[id]; !ok {
		return ErrNoDoc
	}
	delete(col, id)

	order := s.order[collection]
	for i, existing := range order {
		if existing == id {
			s.order[collection] = append(order[:i], order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) CheckRateLimit(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userID + ":" + action
	now := time.Now()
	win := s.windows[key]
	if win == nil || now.After(win.reset) {
		win = &rateWindow{reset: now.Add(window)}
		s.windows[key] = win
	}
	win.count++

	return win.count <= int64(limit), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func splitPath(path string) (parent, child string, ok bool) {
	i := strings.IndexByte(path, '.')
	if i < 0 {
		return "", "", false
	}
	return path[:i], path[i+1:], true
}

func bumpRev(fields map[string]json.RawMessage) {
	var rev int64
	if raw, ok := fields["rev"]; ok {
		_ = json.Unmarshal(raw, &rev)
	}
	fields["rev"], _ = json.Marshal(rev + 1)
}

func stampUpdated(fields map[string]json.RawMessage) {
	fields["updated_at"], _ = json.Marshal(time.Now().UTC())
}

func decodeList(docs [][]byte, out any) error {
	if out == nil {
		return nil
	}
	var buf []byte
	buf = append(buf, '[')
	for i, d := range docs {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, d...)
	}
	buf = append(buf, ']')
	return json.Unmarshal(buf, out)
}
