package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ruizzmauri/gsv-sub000/internal/pstore"
)

// maskedPrefixes lists the dotted path prefixes whose value the safe view
// replaces with "***".
var maskedPrefixes = []string{"apiKeys.", "auth.token", "blob.accessKeyId", "blob.secretAccessKey"}

// Store is the layered config store: a baked-in default tree deep-merged
// with a persisted override tree. The whole override tree is stored as a
// single TypedStore record (overrideRecordID), not one entry per top-level
// key.
type Store struct {
	mu        sync.RWMutex
	defaults  map[string]any
	overrides *pstore.TypedStore[map[string]any]
	cached    map[string]any
}

const overrideRecordID = "config"

// NewStore builds a Store from a default Config and a KV backend for the
// persisted override tree.
func NewStore(kv pstore.KV, defaults Config) (*Store, error) {
	defaultsRaw, err := toRawMap(defaults)
	if err != nil {
		return nil, fmt.Errorf("serialize defaults: %w", err)
	}
	s := &Store{
		defaults:  defaultsRaw,
		overrides: pstore.NewTypedStore[map[string]any](kv, "config/"),
	}
	if err := s.refresh(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func toRawMap(cfg Config) (map[string]any, error) {
	payload, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	return stringifyKeys(raw), nil
}

// stringifyKeys converts yaml.v3's map[string]interface{} (already string
// keyed) recursively so downstream code can rely on map[string]any
// uniformly, including after a json round trip.
func stringifyKeys(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			out[k] = stringifyKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = stringifyKeys(val)
		}
		return out
	default:
		return v
	}
}

func (s *Store) refresh(ctx context.Context) error {
	overrides, ok, err := s.overrides.Load(ctx, overrideRecordID)
	if err != nil {
		return err
	}
	merged := map[string]any{}
	for k, v := range s.defaults {
		merged[k] = v
	}
	if ok {
		merged = deepCloneMerge(merged, overrides)
	}
	s.mu.Lock()
	s.cached = merged
	s.mu.Unlock()
	return nil
}

func deepCloneMerge(dst, src map[string]any) map[string]any {
	merged := map[string]any{}
	for k, v := range dst {
		merged[k] = v
	}
	for key, value := range src {
		if valueMap, ok := value.(map[string]any); ok {
			if existing, ok := merged[key].(map[string]any); ok {
				merged[key] = deepCloneMerge(existing, valueMap)
				continue
			}
		}
		merged[key] = value
	}
	return merged
}

// Get returns a JSON-plain snapshot at path ("" for the whole tree), masked
// of secrets, and whether the path resolved to a value.
func (s *Store) Get(path string) (any, bool) {
	s.mu.RLock()
	root := deepClone(s.cached)
	s.mu.RUnlock()

	maskSecrets(root, "")

	if strings.TrimSpace(path) == "" {
		return root, true
	}
	return lookupPath(root, strings.Split(path, "."))
}

// Set writes value at the given dotted path of the override tree. The path
// is expanded into nested maps (no flat-path keys are stored), and the whole
// override record is rewritten on every Set, not only the top-level key the
// path falls under.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	segments := strings.Split(strings.TrimSpace(path), ".")
	if len(segments) == 0 || segments[0] == "" {
		return fmt.Errorf("config: path is required")
	}

	_, err := s.overrides.Patch(ctx, overrideRecordID, true, func(overrides *map[string]any) error {
		if *overrides == nil {
			*overrides = map[string]any{}
		}
		setPath(*overrides, segments, value)
		return nil
	})
	if err != nil {
		return err
	}
	return s.refresh(ctx)
}

func setPath(root map[string]any, segments []string, value any) {
	if len(segments) == 1 {
		if value == nil {
			delete(root, segments[0])
			return
		}
		root[segments[0]] = value
		return
	}
	next, ok := root[segments[0]].(map[string]any)
	if !ok {
		next = map[string]any{}
		root[segments[0]] = next
	}
	setPath(next, segments[1:], value)
}

func lookupPath(root any, segments []string) (any, bool) {
	current := root
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func maskSecrets(root map[string]any, prefix string) {
	for key, value := range root {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if isMaskedPath(full) {
			root[key] = "***"
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			maskSecrets(nested, full)
		}
	}
}

func isMaskedPath(path string) bool {
	for _, p := range maskedPrefixes {
		if path == p || strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func deepClone(v any) map[string]any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			if nested, ok := val.(map[string]any); ok {
				out[k] = deepClone(nested)
			} else {
				out[k] = val
			}
		}
		return out
	default:
		return map[string]any{}
	}
}

// Typed returns the merged config decoded into a Config struct, for
// components that want static field access rather than path lookups.
func (s *Store) Typed() (Config, error) {
	s.mu.RLock()
	raw := deepClone(s.cached)
	s.mu.RUnlock()
	return DecodeRawConfig(raw, Config{})
}

// ParseBool is a small helper used by RPC handlers decoding query-string or
// dotted-path values that arrive as strings.
func ParseBool(s string) (bool, error) {
	return strconv.ParseBool(s)
}
