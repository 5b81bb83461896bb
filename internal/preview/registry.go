package preview

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"deepdefender/internal/acquire"
	"deepdefender/pkg/imgutil"
)

// ErrReleased is returned when a released handle is read.
var ErrReleased = errors.New("preview: handle released")

// URLScheme prefixes every handle URL.
const URLScheme = "preview:"

// Handle is an ephemeral reference to a renderable representation of an
// image InputFile. It must be released exactly once.
type Handle struct {
	id        string
	name      string
	mediaType string
	kind      imgutil.Kind

	mu       sync.RWMutex
	data     []byte
	released atomic.Bool
	registry *Registry
}

func (h *Handle) ID() string        { return h.id }
func (h *Handle) URL() string       { return URLScheme + h.id }
func (h *Handle) Name() string      { return h.name }
func (h *Handle) MediaType() string { return h.mediaType }
func (h *Handle) Kind() imgutil.Kind {
	return h.kind
}

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	return h.released.Load()
}

// Bytes returns the bound image bytes until the handle is released.
func (h *Handle) Bytes() ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.released.Load() {
		return nil, ErrReleased
	}
	return h.data, nil
}

// Release drops the handle's reference to the image bytes and removes it from
// its registry. Only the first call has an effect; it reports whether this
// call performed the release.
func (h *Handle) Release() bool {
	if h == nil || !h.released.CompareAndSwap(false, true) {
		return false
	}
	h.mu.Lock()
	h.data = nil
	h.mu.Unlock()
	if h.registry != nil {
		h.registry.forget(h.id)
	}
	return true
}

// Registry hands out preview handles and tracks the live ones.
type Registry struct {
	mu       sync.Mutex
	live     map[string]*Handle
	released atomic.Int64
	newID    func() string
}

func NewRegistry() *Registry {
	return &Registry{
		live:  make(map[string]*Handle),
		newID: uuid.NewString,
	}
}

// Create binds a handle to file when its media type is image-like; otherwise
// it returns nil.
func (r *Registry) Create(file *acquire.InputFile) *Handle {
	if file == nil || !file.IsImage() {
		return nil
	}
	h := &Handle{
		id:        r.newID(),
		name:      file.Name,
		mediaType: file.MediaType,
		kind:      imgutil.SniffBytes(file.Data),
		data:      file.Data,
		registry:  r,
	}

	r.mu.Lock()
	r.live[h.id] = h
	r.mu.Unlock()
	return h
}

// Lookup finds a live handle by id.
func (r *Registry) Lookup(id string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.live[id]
	return h, ok
}

// Live returns the number of handles not yet released.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// ReleasedCount returns how many handles this registry has released.
func (r *Registry) ReleasedCount() int64 {
	return r.released.Load()
}

func (r *Registry) forget(id string) {
	r.mu.Lock()
	if _, ok := r.live[id]; ok {
		delete(r.live, id)
		r.released.Add(1)
	}
	r.mu.Unlock()
}
