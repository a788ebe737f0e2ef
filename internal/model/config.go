package model

// Config is the runner configuration, loaded from .cotest.yaml when one is
// present next to the test binary's working directory.
type Config struct {
	SchemaVersion int          `yaml:"schema_version"`
	Trace         TraceConfig  `yaml:"trace"`
	Report        ReportConfig `yaml:"report"`
}

type TraceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	MaxSize int64  `yaml:"max_size"`
}

type ReportConfig struct {
	// VerboseDeadlock includes every blocked coroutine's wait predicate in
	// a deadlock report instead of just a count.
	VerboseDeadlock bool `yaml:"verbose_deadlock"`
	// DumpArgs renders captured argument tuples in the call and return
	// trace records; when off those records carry only the argument count.
	// Failure messages name a call by receiver, method and arity and do not
	// include its arguments.
	DumpArgs bool `yaml:"dump_args"`
}

// DefaultConfig returns the configuration used when no .cotest.yaml exists.
func DefaultConfig() Config {
	return Config{
		SchemaVersion: 1,
		Trace: TraceConfig{
			Enabled: false,
			Path:    "cotest-trace.jsonl",
			MaxSize: 100 * 1024 * 1024,
		},
		Report: ReportConfig{
			VerboseDeadlock: true,
			DumpArgs:        true,
		},
	}
}
