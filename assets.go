package assetcompress

import (
	"sort"
	"sync"
)

// Source exposes the raw content of an asset.
type Source interface {
	Bytes() ([]byte, error)
}

// RawSource is binary asset content.
type RawSource []byte

func (s RawSource) Bytes() ([]byte, error) { return s, nil }

// StringSource is text asset content, read as UTF-8 bytes.
type StringSource string

func (s StringSource) Bytes() ([]byte, error) { return []byte(s), nil }

// AssetMap is the build's set of output assets keyed by name. A name is a
// slash separated path relative to the output directory, optionally
// followed by a query string. It is safe for concurrent use.
type AssetMap struct {
	mu     sync.RWMutex
	assets map[string]Source
	gen    map[string]uint64
	clock  uint64
}

// NewAssetMap returns an empty asset map.
func NewAssetMap() *AssetMap {
	return &AssetMap{assets: make(map[string]Source), gen: make(map[string]uint64)}
}

// Get returns the source stored under name.
func (m *AssetMap) Get(name string) (Source, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.assets[name]
	return s, ok
}

// Set stores src under name, replacing any existing entry.
func (m *AssetMap) Set(name string, src Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assets == nil {
		m.assets = make(map[string]Source)
		m.gen = make(map[string]uint64)
	}
	m.clock++
	m.assets[name] = src
	m.gen[name] = m.clock
}

// Delete removes name from the map.
func (m *AssetMap) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assets, name)
	delete(m.gen, name)
}

// Len returns the number of assets.
func (m *AssetMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.assets)
}

// Mark returns the map's current position for ChangedSince.
func (m *AssetMap) Mark() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clock
}

// ChangedSince returns the sorted names that were set after mark,
// including names whose existing entry was replaced.
func (m *AssetMap) ChangedSince(mark uint64) []string {
	m.mu.RLock()
	var names []string
	for name, g := range m.gen {
		if g > mark {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Names returns a sorted snapshot of the asset names.
func (m *AssetMap) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.assets))
	for name := range m.assets {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}
