package vesting

// OrderedMap is a map that remembers insertion order. Lookups are O(1) and
// enumeration follows the order keys were first inserted; replacing the value
// of an existing key keeps its position.
type OrderedMap[K comparable, V any] struct {
	keys    []K
	entries map[K]V
}

func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{entries: make(map[K]V)}
}

func (m *OrderedMap[K, V]) Get(key K) (V, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *OrderedMap[K, V]) Has(key K) bool {
	_, ok := m.entries[key]
	return ok
}

// Put inserts or replaces the value stored under key.
func (m *OrderedMap[K, V]) Put(key K, value V) {
	if _, ok := m.entries[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.entries[key] = value
}

func (m *OrderedMap[K, V]) Len() int {
	return len(m.keys)
}

// At returns the i-th inserted entry.
func (m *OrderedMap[K, V]) At(i int) (K, V, bool) {
	var (
		zeroK K
		zeroV V
	)
	if i < 0 || i >= len(m.keys) {
		return zeroK, zeroV, false
	}
	k := m.keys[i]
	return k, m.entries[k], true
}

// Keys returns a copy of the keys in insertion order.
func (m *OrderedMap[K, V]) Keys() []K {
	out := make([]K, len(m.keys))
	copy(out, m.keys)
	return out
}

// Each calls fn for every entry in insertion order until fn returns false.
func (m *OrderedMap[K, V]) Each(fn func(K, V) bool) {
	for _, k := range m.keys {
		if !fn(k, m.entries[k]) {
			return
		}
	}
}
