// Package intern implements hash-consing tables.
//
// A Table maps a compact structural key to a single shared value. Callers
// build keys from the identities of already-interned children, so building a
// key never recurses into sub-terms and two values are structurally equal
// exactly when they are the same pointer.
package intern

import (
	"encoding/binary"
	"sync"
)

// ID is the stable identity assigned to an interned value. IDs are dense and
// start at 1 within a table; 0 is never handed out.
type ID uint32

// Table hash-conses values of type V. It only grows: values live as long as
// the table does.
type Table[V any] struct {
	mu     sync.Mutex
	values map[string]V
	next   ID
}

// NewTable creates an empty table
func NewTable[V any]() *Table[V] {
	return &Table[V]{values: make(map[string]V)}
}

// Intern returns the value stored under key, calling mk with a fresh ID to
// create it the first time the key is seen. mk must not intern into the same
// table.
func (t *Table[V]) Intern(key string, mk func(id ID) V) V {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.values[key]; ok {
		return v
	}
	t.next++
	v := mk(t.next)
	t.values[key] = v
	return v
}

// Len returns the number of distinct values interned so far
func (t *Table[V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.values)
}

// KeyBuilder assembles a structural key. The encoding is length-prefixed so
// distinct field sequences can never collide.
type KeyBuilder struct {
	buf []byte
}

// NewKey starts a key with a one byte discriminator
func NewKey(tag byte) *KeyBuilder {
	kb := &KeyBuilder{buf: make([]byte, 0, 32)}
	kb.buf = append(kb.buf, tag)
	return kb
}

// ID appends the identity of an interned child
func (kb *KeyBuilder) ID(id ID) *KeyBuilder {
	kb.buf = binary.AppendUvarint(kb.buf, uint64(id))
	return kb
}

// IDs appends a length-prefixed list of identities
func (kb *KeyBuilder) IDs(ids ...ID) *KeyBuilder {
	kb.buf = binary.AppendUvarint(kb.buf, uint64(len(ids)))
	for _, id := range ids {
		kb.ID(id)
	}
	return kb
}

// Uint appends an unsigned integer
func (kb *KeyBuilder) Uint(v uint64) *KeyBuilder {
	kb.buf = binary.AppendUvarint(kb.buf, v)
	return kb
}

// Bool appends a boolean
func (kb *KeyBuilder) Bool(b bool) *KeyBuilder {
	if b {
		kb.buf = append(kb.buf, 1)
	} else {
		kb.buf = append(kb.buf, 0)
	}
	return kb
}

// Str appends a length-prefixed string
func (kb *KeyBuilder) Str(s string) *KeyBuilder {
	kb.buf = binary.AppendUvarint(kb.buf, uint64(len(s)))
	kb.buf = append(kb.buf, s...)
	return kb
}

// String returns the finished key
func (kb *KeyBuilder) String() string {
	return string(kb.buf)
}
