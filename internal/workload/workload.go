// Package workload replays allocation patterns against the arena and block
// pool allocators and reports what happened.
package workload

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/pavanmanishd/memkit/arena"
	"github.com/pavanmanishd/memkit/blockpool"
	"github.com/pavanmanishd/memkit/vmem"
)

// Result summarises one scenario.
type Result struct {
	Scenario    string
	Allocations int // successful allocations
	Failures    int // allocations refused for lack of capacity
	Resets      int // arena clears forced by exhaustion or end of request
	PeakSlabs   int // most slabs a pool held at once
	Elapsed     time.Duration

	// Arena is the final arena state for arena scenarios.
	Arena *arena.Metrics
}

// Runner executes workloads against a registry.
type Runner struct {
	cfg      Config
	reg      *blockpool.Registry
	provider vmem.Provider
	log      *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithRegistry selects the registry pool scenarios draw from.
func WithRegistry(reg *blockpool.Registry) Option {
	return func(r *Runner) { r.reg = reg }
}

// WithProvider selects the virtual memory provider for the virtual scenario.
func WithProvider(p vmem.Provider) Option {
	return func(r *Runner) { r.provider = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// New validates cfg and returns a Runner.
func New(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid workload config")
	}
	r := &Runner{cfg: cfg}
	for _, o := range opts {
		o(r)
	}
	if r.reg == nil {
		r.reg = blockpool.Default
	}
	if r.provider == nil {
		r.provider = vmem.Default()
	}
	if r.log == nil {
		r.log = slog.New(slog.DiscardHandler)
	}
	return r, nil
}

// Registry returns the registry pool scenarios draw from.
func (r *Runner) Registry() *blockpool.Registry { return r.reg }

// Run executes the configured scenarios in order. It stops at the first
// failing scenario or when ctx is done.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(r.cfg.Scenarios))
	for _, name := range r.cfg.Scenarios {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		start := time.Now()
		res, err := r.run(ctx, name)
		if err != nil {
			return results, errors.Wrapf(err, "scenario %s", name)
		}
		res.Scenario = name
		res.Elapsed = time.Since(start)
		r.log.Info("scenario finished",
			slog.String("scenario", name),
			slog.Int("allocations", res.Allocations),
			slog.Int("failures", res.Failures),
			slog.Duration("elapsed", res.Elapsed))
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) run(ctx context.Context, name string) (Result, error) {
	switch name {
	case ScenarioRequest:
		return r.request(ctx)
	case ScenarioVirtual:
		return r.virtual(ctx)
	case ScenarioSafeArena:
		return r.safeArena(ctx)
	case ScenarioPoolLIFO:
		return r.poolLIFO(ctx)
	case ScenarioPoolMixed:
		return r.poolMixed(ctx)
	case ScenarioPoolShared:
		return r.poolShared(ctx)
	}
	return Result{}, errors.Newf("unknown scenario %q", name)
}

func (r *Runner) rng(stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(r.cfg.Seed, stream))
}

func (r *Runner) arenaOptions() []arena.Option {
	return []arena.Option{
		arena.WithAlignment(uintptr(r.cfg.ArenaAlignment)),
		arena.WithLogger(r.log),
	}
}

// headerField is a fixed-size request header slot.
type headerField struct {
	name  uint64
	value [4]uint64
}

// request serves each iteration from one arena, clearing it when the request
// is done.
func (r *Runner) request(ctx context.Context) (Result, error) {
	a, err := arena.New(r.cfg.ArenaSize, r.arenaOptions()...)
	if err != nil {
		return Result{}, err
	}
	defer a.Destroy()

	var res Result
	rng := r.rng(1)
	for i := 0; i < r.cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		headers := arena.MultiTypeAllocate[headerField](a, 1+rng.IntN(20))
		body := arena.MultiTypeAllocate[byte](a, 1+rng.IntN(max(1, r.cfg.ArenaSize/2)))
		scratch := arena.MultiTypeAllocate[int64](a, 1+rng.IntN(r.cfg.MaxCount))
		for _, ok := range []bool{headers != nil, body != nil, scratch != nil} {
			if ok {
				res.Allocations++
			} else {
				res.Failures++
			}
		}
		if len(headers) > 0 {
			headers[0].name = uint64(i)
		}
		a.Clear()
		res.Resets++
	}
	m := a.Metrics()
	res.Arena = &m
	return res, nil
}

// virtual fills a growable arena with variable-sized buffers, clearing it
// only when the reservation is exhausted.
func (r *Runner) virtual(ctx context.Context) (Result, error) {
	opts := append(r.arenaOptions(), arena.WithProvider(r.provider))
	va, err := arena.NewVirtual(r.cfg.VirtualReserve, 0, opts...)
	if err != nil {
		return Result{}, err
	}
	defer va.Destroy()

	var res Result
	rng := r.rng(2)
	for i := 0; i < r.cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if arena.VirtualMultiTypeAllocate[uint64](va, 1+rng.IntN(8*r.cfg.MaxCount)) != nil {
			res.Allocations++
			continue
		}
		res.Failures++
		va.Clear()
		res.Resets++
	}
	m := va.Metrics()
	res.Arena = &m
	return res, nil
}

// safeArena has every worker allocate from one mutex-guarded arena.
func (r *Runner) safeArena(ctx context.Context) (Result, error) {
	sa, err := arena.NewSafeArena(r.cfg.ArenaSize, r.arenaOptions()...)
	if err != nil {
		return Result{}, err
	}
	defer sa.Destroy()

	var allocs, failures, resets atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < r.cfg.Workers; w++ {
		rng := r.rng(100 + uint64(w))
		g.Go(func() error {
			for i := w; i < r.cfg.Iterations; i += r.cfg.Workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				if arena.SafeMultiTypeAllocate[int64](sa, 1+rng.IntN(r.cfg.MaxCount)) != nil {
					allocs.Add(1)
					continue
				}
				failures.Add(1)
				sa.Clear()
				resets.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	m := sa.Metrics()
	return Result{
		Allocations: int(allocs.Load()),
		Failures:    int(failures.Load()),
		Resets:      int(resets.Load()),
		Arena:       &m,
	}, nil
}

// poolLIFO pushes and pops variable-sized blocks like a stack.
func (r *Runner) poolLIFO(ctx context.Context) (Result, error) {
	al := blockpool.New[int64](r.reg, blockpool.Options{SlabCapacity: r.cfg.SlabCapacity, Tag: "lifo"})
	rng := r.rng(3)

	var res Result
	var stack [][]int64
	for i := 0; i < r.cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if len(stack) > 0 && rng.IntN(3) == 0 {
			al.Deallocate(stack[len(stack)-1])
			stack = stack[:len(stack)-1]
			continue
		}
		stack = append(stack, al.Allocate(1+rng.IntN(r.cfg.MaxCount)))
		res.Allocations++
		res.PeakSlabs = max(res.PeakSlabs, al.Pool().Stats().Slabs)
	}
	for i := len(stack) - 1; i >= 0; i-- {
		al.Deallocate(stack[i])
	}
	return res, drained(al.Pool())
}

// record is the element type of the construction-mode scenario.
type record struct {
	id      int64
	payload [3]int64
}

// poolMixed mixes oversized requests into a construction-mode pool and frees
// in random order.
func (r *Runner) poolMixed(ctx context.Context) (Result, error) {
	al := blockpool.New[record](r.reg, blockpool.Options{
		SlabCapacity: r.cfg.SlabCapacity,
		Construct:    true,
		Tag:          "mixed",
	})
	rng := r.rng(4)

	var res Result
	var live [][]record
	for i := 0; i < r.cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if len(live) > 0 && rng.IntN(2) == 0 {
			j := rng.IntN(len(live))
			al.Deallocate(live[j])
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
			continue
		}
		n := 1 + rng.IntN(r.cfg.MaxCount)
		if rng.IntN(8) == 0 {
			n = r.cfg.SlabCapacity + 1 + rng.IntN(3*r.cfg.SlabCapacity)
		}
		live = append(live, al.Construct(n, record{id: int64(i)}))
		res.Allocations++
		res.PeakSlabs = max(res.PeakSlabs, al.Pool().Stats().Slabs)
	}
	for _, s := range live {
		al.Deallocate(s)
	}
	return res, drained(al.Pool())
}

// poolShared has every worker allocate from one thread-safe pool.
func (r *Runner) poolShared(ctx context.Context) (Result, error) {
	al := blockpool.New[uint64](r.reg, blockpool.Options{
		SlabCapacity: r.cfg.SlabCapacity,
		ThreadSafe:   true,
		Tag:          "shared",
	})

	var allocs atomic.Int64
	var peak atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < r.cfg.Workers; w++ {
		rng := r.rng(200 + uint64(w))
		g.Go(func() error {
			var held [][]uint64
			defer func() {
				for _, s := range held {
					al.Deallocate(s)
				}
			}()
			for i := w; i < r.cfg.Iterations; i += r.cfg.Workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				if len(held) > 0 && rng.IntN(3) == 0 {
					j := rng.IntN(len(held))
					al.Deallocate(held[j])
					held = append(held[:j], held[j+1:]...)
					continue
				}
				held = append(held, al.Allocate(1+rng.IntN(r.cfg.MaxCount)))
				allocs.Add(1)
				for n := int64(al.Pool().Stats().Slabs); ; {
					cur := peak.Load()
					if n <= cur || peak.CompareAndSwap(cur, n) {
						break
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return Result{Allocations: int(allocs.Load()), PeakSlabs: int(peak.Load())}, drained(al.Pool())
}

func drained[T any](p *blockpool.Pool[T]) error {
	if st := p.Stats(); st.Slabs != 0 || st.Live != 0 {
		return errors.AssertionFailedf("pool kept %d slabs with %d live allocations after release", st.Slabs, st.Live)
	}
	return nil
}
