// pkg/engine/registry.go
// Package engine provides the capability registry: the table of scan types
// the pipeline can run, and the gating that prunes scans whose external
// tools are not installed.
package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/reconpipe/reconpipe/pkg/task"
	"github.com/reconpipe/reconpipe/pkg/tools"
)

// ScanFactory creates an instance of a scan wired to the given pipeline
// config. Factories must be cheap and side-effect free; discovery
// instantiates every registered scan just to inspect its requirements.
type ScanFactory func(cfg task.Config) (task.Scan, error)

// registration pairs a factory with the module that registered it. A scan
// name may be registered by more than one module (a generic variant and a
// tool-specific one); all of them are kept.
type registration struct {
	module  string
	factory ScanFactory
}

// Registry is the explicit registration table scan plugins add themselves to
// from their package init. There is no runtime introspection and no naming
// convention: a scan the table does not know about does not exist.
type Registry struct {
	mu    sync.RWMutex
	scans map[string][]registration
}

// NewRegistry returns an empty registry. Most code uses the package-level
// default; tests build their own.
func NewRegistry() *Registry {
	return &Registry{scans: make(map[string][]registration)}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry populated by plugin inits.
func Default() *Registry { return defaultRegistry }

// Register adds a scan factory under name on behalf of module. Registering
// the same (name, module) pair twice is a plugin wiring bug; the duplicate
// is logged and ignored rather than silently overwriting the first.
func Register(name, module string, factory ScanFactory) {
	defaultRegistry.Register(name, module, factory)
}

// Register adds a scan factory to this registry.
func (r *Registry) Register(name, module string, factory ScanFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.scans[name] {
		if reg.module == module {
			log.Warn().Str("scan", name).Str("module", module).
				Msg("duplicate scan registration ignored")
			return
		}
	}
	r.scans[name] = append(r.scans[name], registration{module: module, factory: factory})
}

// Available returns the runnable scans given the current tool state, as a
// mapping from scan name to the sorted list of owning modules.
//
// Each registration is gated independently and non-fatally: a scan whose
// requirements are unmet is pruned, and a factory that fails or panics is
// logged and skipped so one broken plugin never aborts discovery of the
// rest. The result is recomputed fresh on every call; this runs once per
// process at startup, not in a hot loop.
func (r *Registry) Available(state *tools.State) map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	available := make(map[string][]string)
	for name, regs := range r.scans {
		for _, reg := range regs {
			scan, err := safeConstruct(reg.factory, task.Config{})
			if err != nil {
				log.Warn().Err(err).Str("scan", name).Str("module", reg.module).
					Msg("scan factory failed, skipping capability")
				continue
			}

			if requirer, ok := scan.(task.ToolRequirer); ok {
				if ok, _ := state.MeetsRequirements(name, requirer.Requirements(), false); !ok {
					continue
				}
			}

			available[name] = append(available[name], reg.module)
		}
		sort.Strings(available[name])
	}
	return available
}

// New constructs the named scan for execution, applying the fatal
// requirement gate as a last-chance guard for scans invoked directly. When
// several modules registered the name, the most recently registered variant
// wins (tool-specific registrations land after generic ones).
func (r *Registry) New(name string, cfg task.Config) (task.Scan, error) {
	r.mu.RLock()
	regs := r.scans[name]
	r.mu.RUnlock()

	if len(regs) == 0 {
		return nil, fmt.Errorf("no scan registered under name: %s", name)
	}

	scan, err := safeConstruct(regs[len(regs)-1].factory, cfg)
	if err != nil {
		return nil, fmt.Errorf("construct scan %q: %w", name, err)
	}

	if requirer, ok := scan.(task.ToolRequirer); ok {
		if _, err := cfg.Tools.MeetsRequirements(name, requirer.Requirements(), true); err != nil {
			return nil, err
		}
	}
	return scan, nil
}

// Names returns every registered scan name, sorted, regardless of tool
// state.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.scans))
	for name := range r.scans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// safeConstruct shields discovery from misbehaving factories.
func safeConstruct(factory ScanFactory, cfg task.Config) (scan task.Scan, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factory panicked: %v", r)
		}
	}()
	return factory(cfg)
}
