package actor

import (
	"reflect"
	"sync"
)

// Registry is the process-wide mapping from actor identity to live handle.
// An actor appears here exactly while it is Running or BeingRestarted:
// registration happens at start, deterministic removal at stop. Lookups are
// by identity, by user-facing tag (many) and by implementation type (many);
// the tag and type indexes are rebuilt incrementally as handles register,
// retag and unregister. The remote layer uses the identity index to resolve
// inbound messages.
type Registry struct {
	mu     sync.RWMutex
	byID   map[ID]*LocalRef
	byTag  map[string]map[ID]*LocalRef
	byType map[string]map[ID]*LocalRef

	// implTypes remembers the implementation type name a handle was
	// indexed under, so unregister does not depend on the live instance.
	implTypes map[ID]string
}

// newRegistry creates an empty registry.
func newRegistry() *Registry {
	return &Registry{
		byID:      make(map[ID]*LocalRef),
		byTag:     make(map[string]map[ID]*LocalRef),
		byType:    make(map[string]map[ID]*LocalRef),
		implTypes: make(map[ID]string),
	}
}

// implTypeName names the receiver implementation for the type index.
func implTypeName(instance Receiver) string {
	typ := reflect.TypeOf(instance)
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	if typ == nil {
		return ""
	}

	return typ.String()
}

// register adds a handle to all indexes.
func (r *Registry) register(h *LocalRef) {
	tag := h.Tag()
	implType := implTypeName(h.instance)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[h.id] = h

	if _, ok := r.byTag[tag]; !ok {
		r.byTag[tag] = make(map[ID]*LocalRef)
	}
	r.byTag[tag][h.id] = h

	if implType != "" {
		if _, ok := r.byType[implType]; !ok {
			r.byType[implType] = make(map[ID]*LocalRef)
		}
		r.byType[implType][h.id] = h
		r.implTypes[h.id] = implType
	}
}

// unregister removes a handle from all indexes.
func (r *Registry) unregister(h *LocalRef) {
	tag := h.Tag()

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byID, h.id)

	if byTag, ok := r.byTag[tag]; ok {
		delete(byTag, h.id)
		if len(byTag) == 0 {
			delete(r.byTag, tag)
		}
	}

	if implType, ok := r.implTypes[h.id]; ok {
		if byType, ok := r.byType[implType]; ok {
			delete(byType, h.id)
			if len(byType) == 0 {
				delete(r.byType, implType)
			}
		}
		delete(r.implTypes, h.id)
	}
}

// retag moves a handle between tag buckets after SetTag.
func (r *Registry) retag(h *LocalRef, oldTag, newTag string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, registered := r.byID[h.id]; !registered {
		return
	}

	if byTag, ok := r.byTag[oldTag]; ok {
		delete(byTag, h.id)
		if len(byTag) == 0 {
			delete(r.byTag, oldTag)
		}
	}

	if _, ok := r.byTag[newTag]; !ok {
		r.byTag[newTag] = make(map[ID]*LocalRef)
	}
	r.byTag[newTag][h.id] = h
}

// FindByID returns the live handle with the given identity, if the actor is
// Running or BeingRestarted.
func (r *Registry) FindByID(id ID) (*LocalRef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.byID[id]

	return h, ok
}

// FindByTag returns all live handles carrying the given tag.
func (r *Registry) FindByTag(tag string) []*LocalRef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.byTag[tag]
	refs := make([]*LocalRef, 0, len(bucket))
	for _, h := range bucket {
		refs = append(refs, h)
	}

	return refs
}

// FindByImplementation returns all live handles whose receiver is the
// implementation type T. This is a package-level generic function because
// methods cannot have their own type parameters.
func FindByImplementation[T Receiver](r *Registry) []*LocalRef {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.byType[typ.String()]
	refs := make([]*LocalRef, 0, len(bucket))
	for _, h := range bucket {
		refs = append(refs, h)
	}

	return refs
}

// all snapshots every registered handle, used by system shutdown.
func (r *Registry) all() []*LocalRef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make([]*LocalRef, 0, len(r.byID))
	for _, h := range r.byID {
		refs = append(refs, h)
	}

	return refs
}
