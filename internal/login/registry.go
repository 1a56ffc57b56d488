package login

import "sync"

// Registry keeps one Form alive per form instance (the browser session) for as
// long as requests hold it, so concurrent submissions share the submit lock.
type Registry struct {
	newForm func() *Form

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	form *Form
	refs int
}

// NewRegistry constructs a Registry creating forms with the supplied factory.
func NewRegistry(newForm func() *Form) *Registry {
	if newForm == nil {
		panic("login: form factory is required")
	}
	return &Registry{
		newForm: newForm,
		entries: make(map[string]*registryEntry),
	}
}

// Acquire returns the Form for key, creating it when absent. The caller must
// invoke release once done; the Form is discarded after the last release.
func (r *Registry) Acquire(key string) (*Form, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		entry = &registryEntry{form: r.newForm()}
		r.entries[key] = entry
	}
	entry.refs++

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			entry.refs--
			if entry.refs <= 0 && r.entries[key] == entry {
				delete(r.entries, key)
			}
		})
	}
	return entry.form, release
}

// Len reports the number of live forms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
