package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Collections used by the engine. Each is schemaless beyond the entity
// structs in internal/models.
const (
	Accounts     = "accounts"
	Transactions = "transactions"
	Matches      = "matches"
	Leaderboard  = "leaderboard"
	Pools        = "pools"
	Badges       = "badges"
	Claims       = "claims"
)

var (
	ErrNoDoc    = errors.New("store: no document")
	ErrConflict = errors.New("store: conflict")
	ErrFloor    = errors.New("store: floor violated")
)

// Filter is an equality match on top-level document fields. Guards use the
// same shape; a mismatch fails the whole update with ErrConflict.
type Filter map[string]any

// Patch sets top-level fields. Non-patched fields are left untouched.
type Patch map[string]any

// Deltas are integer increments. Keys may use one level of dotted paths
// ("participants.<user>") which create absent fields as zero.
type Deltas map[string]int64

// Store is the document-store client the engine is built against. Every
// write stamps updated_at and bumps the document revision; Insert
// additionally stamps created_at and fails if the id is already taken.
// UpdateAndReturn and IncrementAndReturn are atomic per document:
// guard checks, floor checks and mutation happen as one unit, so
// read-modify-write cycles never interleave on the same entity.
type Store interface {
	Insert(ctx context.Context, collection string, doc any) (string, error)
	FindByID(ctx context.Context, collection, id string, out any) error
	FindOne(ctx context.Context, collection string, filter Filter, out any) error
	FindMany(ctx context.Context, collection string, filter Filter, limit int64, out any) error
	UpdateAndReturn(ctx context.Context, collection, id string, guard Filter, patch Patch, out any) error
	IncrementAndReturn(ctx context.Context, collection, id string, deltas Deltas, floors []string, out any) error
	Delete(ctx context.Context, collection, id string) error
	CheckRateLimit(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, error)
	Close() error
}

// encodeFields flattens a document into per-field raw JSON.
func encodeFields(doc any) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("document is not an object: %v", err)
	}
	return fields, nil
}

// fieldsJSON reassembles per-field raw JSON into one object.
func fieldsJSON(fields map[string]json.RawMessage) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for k, v := range fields {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(k)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func decodeFields(fields map[string]json.RawMessage, out any) error {
	if out == nil {
		return nil
	}
	return json.Unmarshal(fieldsJSON(fields), out)
}

// prepareInsert stamps id, created_at, updated_at and rev. A non-empty id
// already present on the document is honored, which gives callers
// deterministic ids for natural-keyed documents.
func prepareInsert(doc any) (string, map[string]json.RawMessage, error) {
	fields, err := encodeFields(doc)
	if err != nil {
		return "", nil, err
	}

	var id string
	if raw, ok := fields["id"]; ok {
		_ = json.Unmarshal(raw, &id)
	}
	if id == "" {
		id = uuid.New().String()
	}
	fields["id"], _ = json.Marshal(id)

	ts, _ := json.Marshal(time.Now().UTC())
	fields["created_at"] = ts
	fields["updated_at"] = ts
	fields["rev"] = json.RawMessage("1")

	return id, fields, nil
}

func matchesFilter(fields map[string]json.RawMessage, filter Filter) bool {
	for k, want := range filter {
		raw, ok := fields[k]
		if !ok {
			return false
		}
		var got any
		if err := json.Unmarshal(raw, &got); err != nil {
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(got, want any) bool {
	g, w := normalize(got), normalize(want)
	if g == nil || w == nil {
		return g == w
	}
	if reflect.TypeOf(g).Comparable() && reflect.TypeOf(w).Comparable() {
		return g == w
	}
	return reflect.DeepEqual(g, w)
}

// normalize folds numeric kinds into float64 and named string types into
// string so filter values compare cleanly against decoded JSON.
func normalize(v any) any {
	switch n := v.(type) {
	case nil:
		return nil
	case string:
		return n
	case bool:
		return n
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	}
	return v
}

func containsPath(paths []string, path string) bool {
	for _, p := range paths {
		if p == path {
			return true
		}
	}
	return false
}
