package seq

import (
	"iter"
)

// Set is an insertion-ordered collection keyed by an id derived from the
// value. Adding a value whose id is already present replaces it in place
// without changing its position.
type Set[K comparable, V any] struct {
	id func(V) K
	kv map[K]V
	vn map[K]int
	v  []V
}

func (st *Set[K, V]) Add(ts ...V) {
	for _, t := range ts {
		id := st.id(t)
		n, exists := st.vn[id]
		if exists {
			st.v[n] = t
		} else {
			st.v = append(st.v, t)
			st.vn[id] = len(st.v) - 1
		}

		st.kv[id] = t
	}
}

func (st *Set[K, V]) Has(id K) bool {
	_, ok := st.vn[id]
	return ok
}

func (st *Set[K, V]) Get(id K) V {
	return st.kv[id]
}

func (st *Set[K, V]) Len() int {
	return len(st.v)
}

func (st *Set[K, V]) iter(yield func(V) bool) {
	for _, t := range st.v {
		if !yield(t) {
			break
		}
	}
}

func (st *Set[K, V]) Iter() iter.Seq[V] {
	return st.iter
}

func NewSet[K comparable, V any](ts []V, id func(V) K) *Set[K, V] {
	st := &Set[K, V]{
		id: id,
		kv: make(map[K]V),
		v:  make([]V, 0, len(ts)),
		vn: make(map[K]int),
	}
	for n, t := range ts {
		k := id(t)
		st.v = append(st.v, t)
		st.vn[k] = n
		st.kv[k] = t
	}
	return st
}
