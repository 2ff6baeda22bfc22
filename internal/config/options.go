package config

import (
	"fmt"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Default option values.
const (
	DefaultScanDelay     = 2 * time.Second
	DefaultFlushInterval = time.Second
	DefaultLogLevel      = "info"
)

// TokenOption is one configured marker word.
type TokenOption struct {
	Text     string `toml:"text" yaml:"text"`
	Priority string `toml:"priority" yaml:"priority"`
}

// Options is the serialisable configuration.
type Options struct {
	// Enabled turns scanning on or off.
	Enabled bool `toml:"enabled" yaml:"enabled"`

	// Tokens are the marker words to look for.
	Tokens []TokenOption `toml:"tokens" yaml:"tokens"`

	// ExcludeFilePathPatterns are regular expressions matched against
	// full file paths. Matching files are never scanned.
	ExcludeFilePathPatterns []string `toml:"excludeFilePathPatterns" yaml:"excludeFilePathPatterns"`

	// ExcludeExactComments suppresses individual tasks. Each entry has the
	// form "<file name>: <comment body>".
	ExcludeExactComments []string `toml:"excludeExactComments" yaml:"excludeExactComments"`

	// MaxParallelism bounds concurrent file scans. Zero selects a quarter
	// of the available CPUs, clamped to [1, 8].
	MaxParallelism int `toml:"maxParallelism" yaml:"maxParallelism"`

	// ScanDelay is the background reconcile period and the edit debounce.
	ScanDelay Duration `toml:"scanDelay" yaml:"scanDelay"`

	// FlushInterval is the period of the interactive flush loop.
	FlushInterval Duration `toml:"flushInterval" yaml:"flushInterval"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"logLevel" yaml:"logLevel"`
}

// Defaults returns the default options.
func Defaults() Options {
	return Options{
		Enabled: true,
		Tokens: []TokenOption{
			{Text: "TODO", Priority: "normal"},
			{Text: "HACK", Priority: "normal"},
			{Text: "FIXME", Priority: "high"},
			{Text: "UNDONE", Priority: "normal"},
			{Text: "NOTE", Priority: "low"},
		},
		ScanDelay:     Duration(DefaultScanDelay),
		FlushInterval: Duration(DefaultFlushInterval),
		LogLevel:      DefaultLogLevel,
	}
}

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	o.Tokens = slices.Clone(o.Tokens)
	o.ExcludeFilePathPatterns = slices.Clone(o.ExcludeFilePathPatterns)
	o.ExcludeExactComments = slices.Clone(o.ExcludeExactComments)
	return o
}

// Duration is a time.Duration that reads and writes as a string such as "2s".
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}
