package data

import (
	"fmt"
	"sync"
)

// Constructor builds a Record from a flat field mapping.
type Constructor func(fields map[string]any) (Record, error)

// Registry maps discriminator tags to constructors. It is populated once at
// startup, sealed, and then read concurrently.
type Registry struct {
	mu     sync.RWMutex
	ctors  map[DType]Constructor
	sealed bool
}

// NewRegistry creates an empty, unsealed registry. Tags without a constructor
// build Generic records.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[DType]Constructor)}
}

// NewDefaultRegistry returns a sealed registry with the component, page and tag constructors.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for dtype, ctor := range map[DType]Constructor{
		DTypeComponent: NewComponent,
		DTypePage:      NewPage,
		DTypeTag:       NewTag,
	} {
		// Fresh registry: duplicates are impossible.
		_ = r.Register(dtype, ctor)
	}
	r.Seal()
	return r
}

// Register binds ctor to dtype. Registering a tag twice is an error, as is
// registering after Seal or registering the generic fallback tag.
func (r *Registry) Register(dtype DType, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("registering %q: %w", dtype, ErrRegistrySealed)
	}
	if dtype == DTypeGeneric {
		return fmt.Errorf("registering %q: generic is the built-in fallback", dtype)
	}
	if _, ok := r.ctors[dtype]; ok {
		return &DuplicateRegistrationError{DType: dtype}
	}
	r.ctors[dtype] = ctor
	return nil
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Registered reports whether dtype has its own constructor.
func (r *Registry) Registered(dtype DType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ctors[dtype]
	return ok
}

func (r *Registry) constructor(dtype DType) Constructor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ctor, ok := r.ctors[dtype]; ok {
		return ctor
	}
	return genericConstructor(dtype)
}

// Build constructs the record registered for dtype. Unknown tags yield a Generic
// that preserves every field.
func (r *Registry) Build(dtype DType, fields map[string]any) (Record, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	return r.constructor(dtype)(fields)
}

// BuildMany constructs one record per item, preserving order. The first failure
// aborts the batch.
func (r *Registry) BuildMany(dtype DType, items []map[string]any) ([]Record, error) {
	ctor := r.constructor(dtype)
	out := make([]Record, 0, len(items))
	for i, item := range items {
		if item == nil {
			item = map[string]any{}
		}
		rec, err := ctor(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// BuildPage builds a Page record.
func (r *Registry) BuildPage(fields map[string]any) (*Page, error) {
	rec, err := r.Build(DTypePage, fields)
	if err != nil {
		return nil, err
	}
	p, ok := rec.(*Page)
	if !ok {
		return nil, fmt.Errorf("constructor for %q returned %T", DTypePage, rec)
	}
	return p, nil
}

// BuildComponents builds a list of Component records.
func (r *Registry) BuildComponents(items []map[string]any) ([]*Component, error) {
	recs, err := r.BuildMany(DTypeComponent, items)
	if err != nil {
		return nil, err
	}
	out := make([]*Component, len(recs))
	for i, rec := range recs {
		c, ok := rec.(*Component)
		if !ok {
			return nil, fmt.Errorf("constructor for %q returned %T", DTypeComponent, rec)
		}
		out[i] = c
	}
	return out, nil
}

// BuildTags builds a list of Tag records.
func (r *Registry) BuildTags(items []map[string]any) ([]*Tag, error) {
	recs, err := r.BuildMany(DTypeTag, items)
	if err != nil {
		return nil, err
	}
	out := make([]*Tag, len(recs))
	for i, rec := range recs {
		t, ok := rec.(*Tag)
		if !ok {
			return nil, fmt.Errorf("constructor for %q returned %T", DTypeTag, rec)
		}
		out[i] = t
	}
	return out, nil
}
