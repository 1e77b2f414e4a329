package model

// Config is the application-level configuration for the formflow tooling: where
// rule overrides live, where accepted submissions go, and how the rules watcher
// behaves. The core library does not read it; the CLI and watcher do.
type Config struct {
	RulesDir    string            `yaml:"rules_dir"`
	Submissions SubmissionsConfig `yaml:"submissions"`
	Watcher     WatcherConfig     `yaml:"watcher"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type SubmissionsConfig struct {
	Path            string `yaml:"path"`
	Journal         string `yaml:"journal"`
	JournalMaxBytes int64  `yaml:"journal_max_bytes"`
}

type WatcherConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ApplyDefaults fills zero-valued settings in place.
func (c *Config) ApplyDefaults() {
	if c.RulesDir == "" {
		c.RulesDir = "rules"
	}
	if c.Submissions.Path == "" {
		c.Submissions.Path = "submissions.yaml"
	}
	if c.Submissions.Journal == "" {
		c.Submissions.Journal = "submissions.jsonl"
	}
	if c.Submissions.JournalMaxBytes <= 0 {
		c.Submissions.JournalMaxBytes = 10 * 1024 * 1024
	}
	if c.Watcher.DebounceMs <= 0 {
		c.Watcher.DebounceMs = 300
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
