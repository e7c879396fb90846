package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// KeyPrefix is prepended to every key so invalidation globs never touch foreign data.
const KeyPrefix = "cache:"

// Key builds a deterministic cache key from a family and call arguments.
// Positional arguments are hashed in order; named arguments are sorted by name.
type Key struct {
	family     string
	positional []string
	named      map[string]string
}

// NewKey starts a key for the given family.
func NewKey(family string) *Key {
	return &Key{family: family, named: map[string]string{}}
}

// Arg appends a positional argument.
func (k *Key) Arg(v any) *Key {
	k.positional = append(k.positional, canonical(v))
	return k
}

// Named sets a keyword argument.
func (k *Key) Named(name string, v any) *Key {
	k.named[name] = canonical(v)
	return k
}

// String returns cache:<family>:<sha256 hex>.
func (k *Key) String() string {
	names := make([]string, 0, len(k.named))
	for name := range k.named {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(k.family)
	b.WriteString("|")
	b.WriteString(strings.Join(k.positional, ","))
	b.WriteString("|")
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(k.named[name])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return KeyPrefix + k.family + ":" + hex.EncodeToString(sum[:])
}

// canonical renders a value so equal filters always produce equal text.
// Pointers are dereferenced, times are normalized to UTC, and numbers use
// their shortest exact representation.
func canonical(v any) string {
	if v == nil {
		return "<nil>"
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "<nil>"
		}
		rv = rv.Elem()
	}

	switch x := rv.Interface().(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case decimal.Decimal:
		return x.String()
	case string:
		return strconv.Quote(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
