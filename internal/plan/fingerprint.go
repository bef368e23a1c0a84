package plan

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tripweaver/tripweaver/internal/travel"
)

// Fingerprint computes the SHA-256 hash of the canonical JSON serialization
// of a task's domain and parameters (sorted keys, no whitespace). The
// domain is part of the payload so identical parameter sets never collide
// across domains; two equal inputs always hash identically regardless of
// map iteration order.
func Fingerprint(domain travel.Domain, params map[string]interface{}) string {
	data, err := serializeCanonical(map[string]interface{}{
		"domain": string(domain),
		"params": params,
	})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("sha256:%x", sum)
}

// serializeCanonical produces a canonical JSON serialization with sorted
// keys and no whitespace, suitable for hashing.
func serializeCanonical(params map[string]interface{}) ([]byte, error) {
	return json.Marshal(sortedMap(params))
}

// sortedMap returns an ordered representation that json.Marshal will
// serialize with sorted keys.
func sortedMap(m map[string]interface{}) interface{} {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]keyValue, 0, len(keys))
	for _, k := range keys {
		v := m[k]
		if sub, ok := v.(map[string]interface{}); ok {
			v = sortedMap(sub)
		}
		ordered = append(ordered, keyValue{Key: k, Value: v})
	}
	return orderedMap(ordered)
}

type keyValue struct {
	Key   string
	Value interface{}
}

type orderedMap []keyValue

func (o orderedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, kv := range o {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	buf = append(buf, '}')
	return buf, nil
}
