package rules

import (
	"os"
	"strings"
)

// Engine holds a frozen rule set and evaluates commands against it.
// It is immutable after construction and safe for concurrent use.
type Engine struct {
	rules    []Rule
	warnings []Warning
}

type options struct {
	configPath string
	envVar     string
	fs         FileSystem
	lookupEnv  func(string) (string, bool)
}

// Option configures New.
type Option func(*options)

// WithConfigPath overrides the rules file path. An empty path disables the
// config layer. A leading "~/" is expanded.
func WithConfigPath(path string) Option {
	return func(o *options) { o.configPath = ExpandHome(path) }
}

// WithEnvVar overrides the environment variable name. An empty name disables
// the env layer.
func WithEnvVar(name string) Option {
	return func(o *options) { o.envVar = name }
}

// WithFileSystem injects the filesystem used to read the rules file.
func WithFileSystem(fs FileSystem) Option {
	return func(o *options) { o.fs = fs }
}

// WithLookupEnv injects the environment lookup used by the env layer.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(o *options) { o.lookupEnv = fn }
}

// New loads the built-in, config and env layers, in that order, and freezes
// the result. It always succeeds; problems in the config or env layer are
// available from Warnings.
func New(opts ...Option) *Engine {
	o := options{
		configPath: DefaultRulesPath(),
		envVar:     DefaultEnvVar,
		fs:         OSFileSystem{},
		lookupEnv:  os.LookupEnv,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return NewFromSources(
		BuiltinSource{},
		&ConfigSource{Path: o.configPath, FS: o.fs},
		&EnvSource{Var: o.envVar, LookupEnv: o.lookupEnv},
	)
}

// NewFromSources builds an Engine from explicit sources, concatenated in the
// given order. Every rule is stamped with its source's layer.
func NewFromSources(sources ...Source) *Engine {
	e := &Engine{}
	for _, src := range sources {
		layer := src.Layer()
		rules, err := src.Load()
		for _, cause := range SplitErrors(err) {
			w := Warning{Layer: layer, Err: cause}
			log.Warn("%v", w)
			e.warnings = append(e.warnings, w)
		}
		for _, r := range rules {
			r = r.clone()
			r.Layer = layer
			e.rules = append(e.rules, r)
		}
		log.Debug("Layer %s contributed %d rules", layer, len(rules))
	}
	log.Debug("Rule engine initialized with %d rules (%d active)", len(e.rules), e.ActiveCount())
	return e
}

// Evaluate returns the first enabled rule, in layer then source order, that
// matches command.
func (e *Engine) Evaluate(command string) (Rule, bool) {
	lower := strings.ToLower(command)
	for _, r := range e.rules {
		if !r.Enabled {
			continue
		}
		if Match(r.Kind, lower) {
			log.Debug("Command matched rule %s (%s)", r.ID, r.Description)
			return r.clone(), true
		}
	}
	return Rule{}, false
}

// IsDangerous reports whether any enabled rule matches command.
func (e *Engine) IsDangerous(command string) bool {
	_, ok := e.Evaluate(command)
	return ok
}

// Rules returns a deep copy of the rule set in evaluation order, disabled
// rules included.
func (e *Engine) Rules() []Rule {
	return cloneRules(e.rules)
}

// ActiveCount returns the number of enabled rules.
func (e *Engine) ActiveCount() int {
	n := 0
	for _, r := range e.rules {
		if r.Enabled {
			n++
		}
	}
	return n
}

// CountByLayer returns the number of rules contributed by each layer.
func (e *Engine) CountByLayer() map[Layer]int {
	counts := make(map[Layer]int, len(Layers()))
	for _, l := range Layers() {
		counts[l] = 0
	}
	for _, r := range e.rules {
		counts[r.Layer]++
	}
	return counts
}

// Warnings returns the non-fatal problems met while loading.
func (e *Engine) Warnings() []Warning {
	return append([]Warning(nil), e.warnings...)
}
