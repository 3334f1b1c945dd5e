package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per document, each field holding that field's
// raw JSON. Guarded updates and increments run as Lua scripts so the
// check-then-mutate cycle is atomic per document.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisStore{client: client}, nil
}

var insertScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 1 then
		return redis.error_reply("conflict")
	end

	local fields = cjson.decode(ARGV[1])
	for field, raw in pairs(fields) do
		redis.call("HSET", KEYS[1], field, raw)
	end
	redis.call("RPUSH", KEYS[2], ARGV[2])

	return "OK"
`)

func (s *RedisStore) Insert(ctx context.Context, collection string, doc any) (string, error) {
	id, fields, err := prepareInsert(doc)
	if err != nil {
		return "", err
	}

	args, err := json.Marshal(rawFields(fields))
	if err != nil {
		return "", fmt.Errorf("failed to marshal document fields: %v", err)
	}

	keys := []string{docKey(collection, id), idsKey(collection)}
	if err := insertScript.Run(ctx, s.client, keys, string(args), id).Err(); err != nil {
		return "", scriptErr(err)
	}

	return id, nil
}

func (s *RedisStore) FindByID(ctx context.Context, collection, id string, out any) error {
	raw, err := s.client.HGetAll(ctx, docKey(collection, id)).Result()
	if err != nil {
		return fmt.Errorf("failed to get document: %v", err)
	}
	if len(raw) == 0 {
		return ErrNoDoc
	}
	return decodeFields(stringFields(raw), out)
}

func (s *RedisStore) FindOne(ctx context.Context, collection string, filter Filter, out any) error {
	all, err := s.scan(ctx, collection)
	if err != nil {
		return err
	}
	for _, fields := range all {
		if matchesFilter(fields, filter) {
			return decodeFields(fields, out)
		}
	}
	return ErrNoDoc
}

func (s *RedisStore) FindMany(ctx context.Context, collection string, filter Filter, limit int64, out any) error {
	all, err := s.scan(ctx, collection)
	if err != nil {
		return err
	}

	var docs [][]byte
	for _, fields := range all {
		if !matchesFilter(fields, filter) {
			continue
		}
		docs = append(docs, fieldsJSON(fields))
		if limit > 0 && int64(len(docs)) >= limit {
			break
		}
	}
	return decodeList(docs, out)
}

// scan loads a whole collection in insertion order through one pipeline.
func (s *RedisStore) scan(ctx context.Context, collection string) ([]map[string]json.RawMessage, error) {
	ids, err := s.client.LRange(ctx, idsKey(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list collection %s: %v", collection, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, docKey(collection, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("pipeline execution failed: %v", err)
	}

	var all []map[string]json.RawMessage
	for _, cmd := range cmds {
		raw, err := cmd.Result()
		if err != nil || len(raw) == 0 {
			continue
		}
		all = append(all, stringFields(raw))
	}
	return all, nil
}

var updateScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return redis.error_reply("no_doc")
	end

	local guard = cjson.decode(ARGV[1])
	for field, want in pairs(guard) do
		local raw = redis.call("HGET", KEYS[1], field)
		if not raw then
			return redis.error_reply("conflict")
		end
		if cjson.decode(raw) ~= want then
			return redis.error_reply("conflict")
		end
	end

	local patch = cjson.decode(ARGV[2])
	for field, raw in pairs(patch) do
		redis.call("HSET", KEYS[1], field, raw)
	end

	local rev = redis.call("HGET", KEYS[1], "rev")
	redis.call("HSET", KEYS[1], "rev", string.format("%d", (tonumber(rev) or 0) + 1))
	redis.call("HSET", KEYS[1], "updated_at", ARGV[3])

	return redis.call("HGETALL", KEYS[1])
`)

func (s *RedisStore) UpdateAndReturn(ctx context.Context, collection, id string, guard Filter, patch Patch, out any) error {
	if guard == nil {
		guard = Filter{}
	}
	guardArg, err := json.Marshal(guard)
	if err != nil {
		return fmt.Errorf("failed to marshal guard: %v", err)
	}

	patchRaw := make(map[string]string, len(patch))
	for k, v := range patch {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal patch field %s: %v", k, err)
		}
		patchRaw[k] = string(raw)
	}
	patchArg, err := json.Marshal(patchRaw)
	if err != nil {
		return fmt.Errorf("failed to marshal patch: %v", err)
	}

	keys := []string{docKey(collection, id)}
	reply, err := updateScript.Run(ctx, s.client, keys, string(guardArg), string(patchArg), timestampArg()).Result()
	if err != nil {
		return scriptErr(err)
	}

	fields, err := fieldsFromReply(reply)
	if err != nil {
		return err
	}
	return decodeFields(fields, out)
}

var incrementScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[1]) == 0 then
		return redis.error_reply("no_doc")
	end

	local deltas = cjson.decode(ARGV[1])
	local floors = cjson.decode(ARGV[2])

	local scalars = {}
	local parents = {}
	for path, delta in pairs(deltas) do
		local dot = string.find(path, ".", 1, true)
		if dot then
			local parent = string.sub(path, 1, dot - 1)
			local child = string.sub(path, dot + 1)
			if parents[parent] == nil then
				local raw = redis.call("HGET", KEYS[1], parent)
				if raw then
					parents[parent] = cjson.decode(raw)
				else
					parents[parent] = {}
				end
			end
			local nv = (parents[parent][child] or 0) + delta
			if floors[path] and nv < 0 then
				return redis.error_reply("floor")
			end
			parents[parent][child] = nv
		else
			local raw = redis.call("HGET", KEYS[1], path)
			local nv = (tonumber(raw) or 0) + delta
			if floors[path] and nv < 0 then
				return redis.error_reply("floor")
			end
			scalars[path] = nv
		end
	end

	for field, value in pairs(scalars) do
		redis.call("HSET", KEYS[1], field, string.format("%d", value))
	end
	for field, tbl in pairs(parents) do
		redis.call("HSET", KEYS[1], field, cjson.encode(tbl))
	end

	local rev = redis.call("HGET", KEYS[1], "rev")
	redis.call("HSET", KEYS[1], "rev", string.format("%d", (tonumber(rev) or 0) + 1))
	redis.call("HSET", KEYS[1], "updated_at", ARGV[3])

	return redis.call("HGETALL", KEYS[1])
`)

func (s *RedisStore) IncrementAndReturn(ctx context.Context, collection, id string, deltas Deltas, floors []string, out any) error {
	deltasArg, err := json.Marshal(deltas)
	if err != nil {
		return fmt.Errorf("failed to marshal deltas: %v", err)
	}

	floorSet := make(map[string]bool, len(floors))
	for _, f := range floors {
		floorSet[f] = true
	}
	floorsArg, err := json.Marshal(floorSet)
	if err != nil {
		return fmt.Errorf("failed to marshal floors: %v", err)
	}

	keys := []string{docKey(collection, id)}
	reply, err := incrementScript.Run(ctx, s.client, keys, string(deltasArg), string(floorsArg), timestampArg()).Result()
	if err != nil {
		return scriptErr(err)
	}

	fields, err := fieldsFromReply(reply)
	if err != nil {
		return err
	}
	return decodeFields(fields, out)
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	removed, err := s.client.Del(ctx, docKey(collection, id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete document: %v", err)
	}
	if removed == 0 {
		return ErrNoDoc
	}
	if err := s.client.LRem(ctx, idsKey(collection), 1, id).Err(); err != nil {
		return fmt.Errorf("failed to unlist document: %v", err)
	}
	return nil
}

func (s *RedisStore) CheckRateLimit(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %v", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func rawFields(fields map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = string(v)
	}
	return out
}

func stringFields(raw map[string]string) map[string]json.RawMessage {
	fields := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		fields[k] = json.RawMessage(v)
	}
	return fields
}

func fieldsFromReply(reply any) (map[string]json.RawMessage, error) {
	items, ok := reply.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected script reply type %T", reply)
	}
	fields := make(map[string]json.RawMessage, len(items)/2)
	for i := 0; i+1 < len(items); i += 2 {
		k, _ := items[i].(string)
		v, _ := items[i+1].(string)
		fields[k] = json.RawMessage(v)
	}
	return fields, nil
}

func timestampArg() string {
	ts, _ := json.Marshal(time.Now().UTC())
	return string(ts)
}

func scriptErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no_doc"):
		return ErrNoDoc
	case strings.Contains(msg, "conflict"):
		return ErrConflict
	case strings.Contains(msg, "floor"):
		return ErrFloor
	}
	return err
}
