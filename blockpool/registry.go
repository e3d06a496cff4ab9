package blockpool

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
)

// Options identify a pool configuration.
type Options struct {
	// SlabCapacity is the number of elements per slab. Values <= 0 select
	// DefaultSlabCapacity.
	SlabCapacity int
	// ThreadSafe guards every Allocate and Deallocate with one pool-wide lock.
	ThreadSafe bool
	// Construct makes allocators fill new storage with a value and tear
	// elements down before releasing them. It does not select a different
	// pool: allocators that differ only in Construct share storage.
	Construct bool
	// Tag separates otherwise identical configurations into independent pools.
	Tag string
}

type poolKey struct {
	elem       reflect.Type
	capacity   int
	threadSafe bool
	tag        string
}

func (k poolKey) String() string {
	s := fmt.Sprintf("%s/%d", k.elem, k.capacity)
	if k.threadSafe {
		s += "/safe"
	}
	if k.tag != "" {
		s += "/" + k.tag
	}
	return s
}

// statser is the type-erased view of a Pool used for reporting.
type statser interface {
	Stats() Stats
}

// Registry owns one Pool per configuration. Pools are created on first
// lookup and live as long as the Registry.
type Registry struct {
	mu    sync.Mutex
	pools map[poolKey]statser
	log   *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger handed to every pool of the registry.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{pools: make(map[poolKey]statser)}
	for _, o := range opts {
		o(r)
	}
	if r.log == nil {
		r.log = slog.New(slog.DiscardHandler)
	}
	return r
}

// Default is a process-wide registry for callers that do not manage their own.
var Default = NewRegistry()

func normalize(o Options) Options {
	if o.SlabCapacity <= 0 {
		o.SlabCapacity = DefaultSlabCapacity
	}
	return o
}

// Lookup returns the pool for T under opts, creating it on first use.
func Lookup[T any](r *Registry, opts Options) *Pool[T] {
	opts = normalize(opts)
	elem := reflect.TypeFor[T]()
	if elem.Size() == 0 {
		panic("blockpool: zero-size element type " + elem.String())
	}
	key := poolKey{elem: elem, capacity: opts.SlabCapacity, threadSafe: opts.ThreadSafe, tag: opts.Tag}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pools[key]; ok {
		return p.(*Pool[T])
	}
	p := newPool[T](opts.SlabCapacity, opts.ThreadSafe, key.String(), r.log)
	r.pools[key] = p
	r.log.Debug("pool created",
		slog.String("allocator", "blockpool"),
		slog.String("pool", key.String()))
	return p
}

// PoolStats pairs a pool name with its statistics.
type PoolStats struct {
	Name       string
	Elem       string
	ThreadSafe bool
	Tag        string
	Stats
}

// Snapshot returns statistics for every pool, sorted by name. Pools that are
// not ThreadSafe are read without a lock, so call it from the goroutine that
// uses them.
func (r *Registry) Snapshot() []PoolStats {
	r.mu.Lock()
	keys := make([]poolKey, 0, len(r.pools))
	pools := make([]statser, 0, len(r.pools))
	for k, p := range r.pools {
		keys = append(keys, k)
		pools = append(pools, p)
	}
	r.mu.Unlock()

	out := make([]PoolStats, len(keys))
	for i, k := range keys {
		out[i] = PoolStats{
			Name:       k.String(),
			Elem:       k.elem.String(),
			ThreadSafe: k.threadSafe,
			Tag:        k.tag,
			Stats:      pools[i].Stats(),
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
