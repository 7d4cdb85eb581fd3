package docstore

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Path addresses a field by its segments, so keys that contain dots (player
// names) stay intact.
type Path []string

func P(segments ...string) Path { return Path(segments) }

func (p Path) String() string { return strings.Join(p, ".") }

type FieldUpdate struct {
	Path   Path
	Value  any
	Delete bool
}

func Set(p Path, v any) FieldUpdate { return FieldUpdate{Path: p, Value: v} }

func Delete(p Path) FieldUpdate { return FieldUpdate{Path: p, Delete: true} }

// ApplyUpdates writes updates into data in order, creating intermediate
// objects as needed. The last write to a field wins.
func ApplyUpdates(data map[string]any, updates []FieldUpdate) error {
	for _, u := range updates {
		if len(u.Path) == 0 {
			return fmt.Errorf("empty field path")
		}
		parent := data
		for i, seg := range u.Path[:len(u.Path)-1] {
			next, ok := parent[seg]
			if !ok || next == nil {
				if u.Delete {
					parent = nil
					break
				}
				child := map[string]any{}
				parent[seg] = child
				parent = child
				continue
			}
			child, ok := next.(map[string]any)
			if !ok {
				return fmt.Errorf("field %s is not an object", u.Path[:i+1])
			}
			parent = child
		}
		if parent == nil {
			continue
		}

		leaf := u.Path[len(u.Path)-1]
		if u.Delete {
			delete(parent, leaf)
			continue
		}
		v, err := Normalize(u.Value)
		if err != nil {
			return fmt.Errorf("field %s: %w", u.Path, err)
		}
		parent[leaf] = v
	}
	return nil
}

// Normalize turns v into the shape encoding/json decodes into (maps, slices,
// float64, string, bool, nil). Every backend stores normalized values so a
// document reads back the same whichever store holds it.
func Normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CloneData deep-copies a document body.
func CloneData(data map[string]any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	v, err := Normalize(data)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// Encode and Decode are the persisted form used by the SQL backends.
func Encode(data map[string]any) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func Decode(raw string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// As converts a document body into a typed value.
func As[T any](data map[string]any) (T, error) {
	var out T
	b, err := json.Marshal(data)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}

// From converts a typed value into a document body.
func From(v any) (map[string]any, error) {
	n, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	m, ok := n.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%T does not encode to an object", v)
	}
	return m, nil
}

// Copy deep-copies a normalized document body.
func Copy(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Copy(t)
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = copyValue(e)
		}
		return s
	default:
		return v
	}
}
