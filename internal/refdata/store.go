// Package refdata provides the in-memory reference data store: the category
// taxonomy, the suburb database, and the guide documents. Everything is
// lazily loaded on first use and read-only afterwards, so unsynchronized
// concurrent reads are safe.
package refdata

import (
	"sync"
)

// Store is the reference data store. The zero value is not usable; create
// one with New.
type Store struct {
	dir string

	catOnce    sync.Once
	categories map[string]Category
	catOrder   []string

	subOnce sync.Once
	suburbs []Suburb

	kwOnce   sync.Once
	keywords []KeywordEntry

	guideMu    sync.Mutex
	guideCache map[string]string
}

// New creates a store that loads from the given resources directory.
func New(dir string) *Store {
	return &Store{dir: dir, guideCache: make(map[string]string)}
}
