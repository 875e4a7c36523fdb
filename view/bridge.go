package view

import "sync"

// Keys of ambient presentation state.
const (
	ThemeKey = "theme"

	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Bridge carries presentation state owned by the host surface, such as the
// colour theme. Components read and write it without knowing where it lives.
type Bridge interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// MapBridge is an in-memory Bridge.
type MapBridge struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMapBridge creates an empty MapBridge.
func NewMapBridge() *MapBridge {
	return &MapBridge{values: make(map[string]string)}
}

func (b *MapBridge) Get(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	return v, ok
}

func (b *MapBridge) Set(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
}

// Theme returns the theme stored in b, defaulting to light. Unknown values
// are ignored.
func Theme(b Bridge) string {
	if b == nil {
		return ThemeLight
	}
	if v, ok := b.Get(ThemeKey); ok && (v == ThemeLight || v == ThemeDark) {
		return v
	}
	return ThemeLight
}
