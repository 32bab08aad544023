// Package fimo is the public surface of the module subsystem: a
// process-local library for loading, linking, and unloading independently
// authored software modules inside a single Go process. It wraps the
// internal executor, symbol index, instance registry, dependency graph,
// lifecycle, and loading-set packages behind a stable API, the way a
// host program is expected to consume this library.
package fimo

import (
	"context"
	"fmt"

	"github.com/fimoengine/fimo-go/internal/depgraph"
	"github.com/fimoengine/fimo-go/internal/executor"
	"github.com/fimoengine/fimo-go/internal/lifecycle"
	"github.com/fimoengine/fimo-go/internal/loadset"
	"github.com/fimoengine/fimo-go/internal/obslog"
	"github.com/fimoengine/fimo-go/internal/registry"
	"github.com/fimoengine/fimo-go/internal/symbolindex"
)

// Profile selects the release/dev build profile a Context is constructed
// under (spec.md §6 "Profile and features").
type Profile int

const (
	ProfileRelease Profile = iota
	ProfileDev
)

func (p Profile) String() string {
	if p == ProfileDev {
		return "dev"
	}
	return "release"
}

// FeatureFlag is the tri-state flag a caller attaches to a requested
// feature: on, off, or required.
type FeatureFlag int

const (
	FeatureOff FeatureFlag = iota
	FeatureOn
	FeatureRequired
)

// FeatureRequest is one entry of the feature list passed to NewContext.
type FeatureRequest struct {
	Name string
	Flag FeatureFlag
}

// FeatureStatus is one entry of the published status vector.
type FeatureStatus struct {
	Name    string
	Enabled bool
}

// ErrIncompatibleFeature is returned by NewContext when a required feature
// is not among the host-supplied available set.
var ErrIncompatibleFeature = fmt.Errorf("fimo: required feature is unavailable")

// Context is the process-local module subsystem root: one Executor, one
// shared Registry/Symbols/DepGraph/NSIncludes, and the computed feature
// status vector. A process may host more than one independent Context
// (e.g. in tests), each with its own Executor goroutine.
type Context struct {
	profile  Profile
	features []FeatureStatus

	deps *lifecycle.Deps
	ex   *executor.Executor
	h    *executor.Handle
}

// ContextOption configures a Context at construction, mirroring
// internal/executor's ExecutorOption functional-options pattern.
type ContextOption interface {
	applyContext(*contextConfig)
}

type contextConfig struct {
	requests  []FeatureRequest
	available map[string]bool
	log       *obslog.Logger
}

type contextOptionFunc func(*contextConfig)

func (f contextOptionFunc) applyContext(c *contextConfig) { f(c) }

// WithFeatureRequests attaches the feature request list NewContext
// validates against WithAvailableFeatures (spec.md §6 "Profile and
// features").
func WithFeatureRequests(requests []FeatureRequest) ContextOption {
	return contextOptionFunc(func(c *contextConfig) { c.requests = requests })
}

// WithAvailableFeatures attaches the host's advertised feature catalog; a
// nil or missing entry means "not available".
func WithAvailableFeatures(available map[string]bool) ContextOption {
	return contextOptionFunc(func(c *contextConfig) { c.available = available })
}

// WithContextLogger attaches a structured logger to the Context and its
// Executor. Omitting it leaves logging a no-op.
func WithContextLogger(log *obslog.Logger) ContextOption {
	return contextOptionFunc(func(c *contextConfig) { c.log = log })
}

func resolveContextOptions(opts []ContextOption) *contextConfig {
	c := &contextConfig{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.applyContext(c)
	}
	return c
}

// NewContext constructs a Context under the given profile, validating the
// requests from WithFeatureRequests against the catalog from
// WithAvailableFeatures. Construction fails if any FeatureRequired
// request is not present and true in that catalog, per spec.md §6:
// "Incompatible required features fail context construction." The
// Executor is started immediately; callers shut it down via
// Context.Shutdown.
func NewContext(profile Profile, opts ...ContextOption) (*Context, error) {
	cfg := resolveContextOptions(opts)

	statuses := make([]FeatureStatus, 0, len(cfg.requests))
	for _, r := range cfg.requests {
		enabled := cfg.available[r.Name]
		if r.Flag == FeatureOff {
			enabled = false
		}
		if r.Flag == FeatureRequired && !enabled {
			return nil, fmt.Errorf("%w: %q", ErrIncompatibleFeature, r.Name)
		}
		statuses = append(statuses, FeatureStatus{Name: r.Name, Enabled: enabled})
	}

	log := cfg.log
	if log == nil {
		log = obslog.Noop()
	}
	ex := executor.New(executor.WithLogger(log))
	h, err := ex.Start()
	if err != nil {
		return nil, err
	}

	return &Context{
		profile:  profile,
		features: statuses,
		ex:       ex,
		h:        h,
		deps: &lifecycle.Deps{
			Registry:   registry.New(),
			Symbols:    symbolindex.New(),
			DepGraph:   depgraph.New(),
			NSIncludes: depgraph.New(),
			Log:        log,
		},
	}, nil
}

// Profile reports the profile this Context was constructed under.
func (c *Context) Profile() Profile { return c.profile }

// Features reports the computed feature status vector.
func (c *Context) Features() []FeatureStatus {
	out := make([]FeatureStatus, len(c.features))
	copy(out, c.features)
	return out
}

// Shutdown requests the Executor's loop to terminate once its queue
// drains, and blocks until it does or ctx is cancelled.
func (c *Context) Shutdown(ctx context.Context) error {
	c.h.RequestStop()
	return c.h.Join(ctx)
}

// NewLoadingSet opens a new staging container sharing this Context's
// Executor and core subsystems (spec.md §4.6).
func (c *Context) NewLoadingSet() *LoadingSet {
	return &LoadingSet{inner: loadset.New(c.deps, c.ex)}
}

// FindInstance looks up a live instance by name and returns an observer
// handle (spec.md §4.4's Info), or false if no such instance is loaded.
func (c *Context) FindInstance(name string) (*Info, bool) {
	inst, ok := c.deps.Registry.Get(name)
	if !ok {
		return nil, false
	}
	return &Info{info: c.deps.Registry.NewInfo(inst), deps: c.deps}, true
}

// Prune runs the automatic prune pass of spec.md §4.4: every instance
// whose strong refcount has reached zero is torn down, in an order that
// destroys a dependent before anything it still depends on. It returns a
// future resolving to the number of instances destroyed.
func (c *Context) Prune() executor.Future[int] {
	return executor.Enqueue(c.ex, lifecycle.Prune(c.deps), nil, nil)
}
