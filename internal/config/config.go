package config

import (
	"fmt"
	"log/slog"
	"regexp"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/tasktrack/internal/scan"
)

// Parallelism bounds.
const (
	MinParallelism = 1
	MaxParallelism = 8
)

const patternCacheSize = 256

// patternCache memoises compiled path patterns across Compile calls, since
// most option changes leave the pattern list untouched.
var patternCache *lru.Cache[string, *regexp.Regexp]

func init() {
	c, err := lru.New[string, *regexp.Regexp](patternCacheSize)
	if err != nil {
		panic(err)
	}
	patternCache = c
}

var generation atomic.Uint64

// Config is an immutable, validated configuration snapshot.
type Config struct {
	opts        Options
	generation  uint64
	tokens      []scan.Token
	patterns    []*regexp.Regexp
	excluded    map[string]struct{}
	parallelism int
	logLevel    slog.Level
}

// Compile validates opts and builds a Config.
// A bad token, pattern or log level yields a *ValidationError.
func Compile(opts Options) (*Config, error) {
	opts = opts.Clone()

	specs := make([]scan.TokenSpec, 0, len(opts.Tokens))
	for i, t := range opts.Tokens {
		p, err := scan.ParsePriority(t.Priority)
		if err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("tokens[%d].priority", i), Value: t.Priority, Err: err}
		}
		specs = append(specs, scan.TokenSpec{Text: t.Text, Priority: p})
	}
	tokens, err := scan.NewTokens(specs)
	if err != nil {
		return nil, &ValidationError{Field: "tokens", Value: opts.Tokens, Err: err}
	}

	patterns := make([]*regexp.Regexp, 0, len(opts.ExcludeFilePathPatterns))
	for i, p := range opts.ExcludeFilePathPatterns {
		re, err := compilePattern(p)
		if err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("excludeFilePathPatterns[%d]", i), Value: p, Err: err}
		}
		patterns = append(patterns, re)
	}

	excluded := make(map[string]struct{}, len(opts.ExcludeExactComments))
	for _, c := range opts.ExcludeExactComments {
		excluded[c] = struct{}{}
	}

	if opts.MaxParallelism < 0 {
		return nil, &ValidationError{Field: "maxParallelism", Value: opts.MaxParallelism, Err: fmt.Errorf("must not be negative")}
	}
	if opts.ScanDelay < 0 {
		return nil, &ValidationError{Field: "scanDelay", Value: opts.ScanDelay, Err: fmt.Errorf("must not be negative")}
	}
	if opts.FlushInterval < 0 {
		return nil, &ValidationError{Field: "flushInterval", Value: opts.FlushInterval, Err: fmt.Errorf("must not be negative")}
	}

	level, err := ParseLogLevel(opts.LogLevel)
	if err != nil {
		return nil, &ValidationError{Field: "logLevel", Value: opts.LogLevel, Err: err}
	}

	return &Config{
		opts:        opts,
		generation:  generation.Add(1),
		tokens:      tokens,
		patterns:    patterns,
		excluded:    excluded,
		parallelism: resolveParallelism(opts.MaxParallelism),
		logLevel:    level,
	}, nil
}

func compilePattern(p string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Get(p); ok {
		return re, nil
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, err
	}
	patternCache.Add(p, re)
	return re, nil
}

func resolveParallelism(n int) int {
	if n == 0 {
		n = runtime.NumCPU() / 4
	}
	return min(max(n, MinParallelism), MaxParallelism)
}

// ParseLogLevel parses debug, info, warn or error. Empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Options returns a copy of the options this Config was compiled from.
func (c *Config) Options() Options {
	return c.opts.Clone()
}

// Generation identifies the snapshot. Every Compile yields a new value.
func (c *Config) Generation() uint64 {
	return c.generation
}

// Enabled reports whether scanning is on.
func (c *Config) Enabled() bool {
	return c.opts.Enabled
}

// Tokens returns the resolved tokens. The slice must not be modified.
func (c *Config) Tokens() []scan.Token {
	return c.tokens
}

// IsPathExcluded reports whether any path pattern matches path.
func (c *Config) IsPathExcluded(path string) bool {
	for _, re := range c.patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// IsCommentExcluded reports whether text is an exact-comment exclusion.
func (c *Config) IsCommentExcluded(text string) bool {
	_, ok := c.excluded[text]
	return ok
}

// Parallelism returns the resolved scan parallelism.
func (c *Config) Parallelism() int {
	return c.parallelism
}

// ScanDelay returns the background period, defaulting when unset.
func (c *Config) ScanDelay() time.Duration {
	if c.opts.ScanDelay == 0 {
		return DefaultScanDelay
	}
	return c.opts.ScanDelay.Std()
}

// FlushInterval returns the flush period, defaulting when unset.
func (c *Config) FlushInterval() time.Duration {
	if c.opts.FlushInterval == 0 {
		return DefaultFlushInterval
	}
	return c.opts.FlushInterval.Std()
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() slog.Level {
	return c.logLevel
}
