package jobs

// JobDef describes one registered job type: its handler, defaults, and the
// metadata exposed through the worker HTTP surface.
type JobDef struct {
	Type               string
	Handler            Handler
	DefaultMaxAttempts int
	HumanName          string
	Description        string
	Category           string
}

// Registry is the static job_type -> definition table.
type Registry struct {
	defs map[string]JobDef
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: map[string]JobDef{}}
}

// Register adds or replaces a job definition.
func (r *Registry) Register(def JobDef) {
	if def.DefaultMaxAttempts == 0 {
		def.DefaultMaxAttempts = 3
	}
	r.defs[def.Type] = def
}

// Lookup returns the definition for a job type.
func (r *Registry) Lookup(jobType string) (JobDef, bool) {
	def, ok := r.defs[jobType]
	return def, ok
}

// List returns every registered definition.
func (r *Registry) List() []JobDef {
	out := make([]JobDef, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	return out
}

// Known job type constants.
const (
	TypeProcessRawMetrics = "PROCESS_RAW_METRICS"
	TypeProcessMetrics    = "PROCESS_METRICS"
	TypeCleanupLogs       = "CLEANUP_LOGS"
	TypeHealthCheck       = "HEALTH_CHECK"
)
