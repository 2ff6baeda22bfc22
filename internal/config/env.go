package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "TASKTRACK_"

// Environment variables recognised by ApplyEnv.
const (
	EnvEnabled        = EnvPrefix + "ENABLED"
	EnvTokens         = EnvPrefix + "TOKENS"
	EnvExcludePaths   = EnvPrefix + "EXCLUDE_PATHS"
	EnvMaxParallelism = EnvPrefix + "MAX_PARALLELISM"
	EnvScanDelay      = EnvPrefix + "SCAN_DELAY"
	EnvFlushInterval  = EnvPrefix + "FLUSH_INTERVAL"
	EnvLogLevel       = EnvPrefix + "LOG_LEVEL"
)

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides opts from the process environment.
func ApplyEnv(opts *Options) error {
	return ApplyEnvWith(opts, os.LookupEnv)
}

// ApplyEnvWith overrides opts using lookup.
//
// TASKTRACK_TOKENS is a comma-separated list of TEXT or TEXT:priority.
// TASKTRACK_EXCLUDE_PATHS is a list of patterns separated by the OS path
// list separator. Empty values are treated as set.
func ApplyEnvWith(opts *Options, lookup LookupFunc) error {
	if v, ok := lookup(EnvEnabled); ok {
		b, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvEnabled, err)
		}
		opts.Enabled = b
	}

	if v, ok := lookup(EnvTokens); ok {
		opts.Tokens = parseTokens(v)
	}

	if v, ok := lookup(EnvExcludePaths); ok {
		opts.ExcludeFilePathPatterns = splitList(v, string(os.PathListSeparator))
	}

	if v, ok := lookup(EnvMaxParallelism); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxParallelism, err)
		}
		opts.MaxParallelism = n
	}

	if v, ok := lookup(EnvScanDelay); ok {
		if err := opts.ScanDelay.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
			return fmt.Errorf("%s: %w", EnvScanDelay, err)
		}
	}

	if v, ok := lookup(EnvFlushInterval); ok {
		if err := opts.FlushInterval.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
			return fmt.Errorf("%s: %w", EnvFlushInterval, err)
		}
	}

	if v, ok := lookup(EnvLogLevel); ok {
		opts.LogLevel = strings.TrimSpace(v)
	}

	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0", "":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

func parseTokens(s string) []TokenOption {
	var tokens []TokenOption
	for _, item := range splitList(s, ",") {
		text, priority, _ := strings.Cut(item, ":")
		tokens = append(tokens, TokenOption{
			Text:     strings.TrimSpace(text),
			Priority: strings.TrimSpace(priority),
		})
	}
	return tokens
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
