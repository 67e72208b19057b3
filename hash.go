package flags

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/sirupsen/logrus"
)

// HashValue identifies the resolved content of a locked tree.
type HashValue uint64

func (h HashValue) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

var fingerprintSpace = uuid.MustParse("6f1c2d3e-8a44-5b7e-9c1d-2e3f4a5b6c7d")

// Fingerprint renders the hash as a name-based UUID, suitable as a storage
// key.
func (h HashValue) Fingerprint() uuid.UUID {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(h))
	return uuid.NewSHA1(fingerprintSpace, buf[:])
}

// hashEntry pairs a value with its dynamic type, since hashstructure hashes
// int(1) and int64(1) alike. Unexported struct fields are not hashed, so trees
// differing only there share a hash while Equal tells them apart.
type hashEntry struct {
	Path  string
	Type  string
	Value any
}

// typeSignature spells out the dynamic types inside value, including the
// elements held by interface-typed slices, maps and fields.
func typeSignature(value any) string {
	var b strings.Builder
	writeTypeSignature(&b, reflect.ValueOf(value))
	return b.String()
}

func writeTypeSignature(b *strings.Builder, v reflect.Value) {
	if !v.IsValid() {
		b.WriteString("nil")
		return
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			b.WriteString(v.Type().String())
			return
		}
		if v.Kind() == reflect.Pointer {
			b.WriteString("*")
		}
		writeTypeSignature(b, v.Elem())
	case reflect.Slice, reflect.Array:
		b.WriteString(v.Type().String())
		b.WriteString("{")
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				b.WriteString(",")
			}
			writeTypeSignature(b, v.Index(i))
		}
		b.WriteString("}")
	case reflect.Map:
		keys := v.MapKeys()
		sigs := make([]string, len(keys))
		for i, key := range keys {
			var entry strings.Builder
			fmt.Fprintf(&entry, "%v:", key)
			writeTypeSignature(&entry, key)
			entry.WriteString("=")
			writeTypeSignature(&entry, v.MapIndex(key))
			sigs[i] = entry.String()
		}
		sort.Strings(sigs)
		b.WriteString(v.Type().String())
		b.WriteString("{")
		b.WriteString(strings.Join(sigs, ","))
		b.WriteString("}")
	case reflect.Struct:
		b.WriteString(v.Type().String())
		b.WriteString("{")
		for i := 0; i < v.NumField(); i++ {
			if i > 0 {
				b.WriteString(",")
			}
			writeTypeSignature(b, v.Field(i))
		}
		b.WriteString("}")
	default:
		b.WriteString(v.Type().String())
	}
}

// Hash loads every category, resolves every flag and hashes the sorted
// (path, value) pairs. The tree must be locked; the result is cached.
// Concurrent callers share one computation.
func (t *Tree) Hash() (HashValue, error) {
	if !t.state.locked {
		return 0, newFlagError("hash", "", ErrNotLocked)
	}
	t.hashMu.Lock()
	defer t.hashMu.Unlock()
	if t.hash != nil {
		return *t.hash, nil
	}
	if err := t.LoadAll(); err != nil {
		return 0, err
	}
	var entries []hashEntry
	err := t.walkResolved(t.root, "", func(path string, value any, err error) error {
		if err != nil {
			return err
		}
		entries = append(entries, hashEntry{Path: path, Type: typeSignature(value), Value: value})
		return nil
	})
	if err != nil {
		return 0, err
	}
	sum, err := hashstructure.Hash(entries, hashstructure.FormatV2, nil)
	if err != nil {
		return 0, newFlagError("hash", "", err)
	}
	h := HashValue(sum)
	t.hash = &h

	t.log("flags.Hash").WithFields(logrus.Fields{"hash": h.String(), "flags": len(entries)}).Debug("tree hashed")
	return h, nil
}
