package config

import (
	"testing"
	"time"
)

func lookupMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestApplyEnvWith(t *testing.T) {
	opts := Defaults()
	err := ApplyEnvWith(&opts, lookupMap(map[string]string{
		EnvEnabled:        "off",
		EnvTokens:         "TODO:high, HACK ,BUG:low",
		EnvMaxParallelism: "2",
		EnvScanDelay:      "5s",
		EnvLogLevel:       "warn",
	}))
	if err != nil {
		t.Fatalf("ApplyEnvWith: %v", err)
	}

	if opts.Enabled {
		t.Error("Enabled = true")
	}
	want := []TokenOption{{"TODO", "high"}, {"HACK", ""}, {"BUG", "low"}}
	if len(opts.Tokens) != len(want) {
		t.Fatalf("Tokens = %+v", opts.Tokens)
	}
	for i := range want {
		if opts.Tokens[i] != want[i] {
			t.Errorf("Tokens[%d] = %+v, want %+v", i, opts.Tokens[i], want[i])
		}
	}
	if opts.MaxParallelism != 2 {
		t.Errorf("MaxParallelism = %d", opts.MaxParallelism)
	}
	if opts.ScanDelay.Std() != 5*time.Second {
		t.Errorf("ScanDelay = %v", opts.ScanDelay)
	}
	if opts.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", opts.LogLevel)
	}
	if _, err := Compile(opts); err != nil {
		t.Errorf("Compile: %v", err)
	}
}

func TestApplyEnvWith_Invalid(t *testing.T) {
	tests := map[string]string{
		EnvEnabled:        "maybe",
		EnvMaxParallelism: "many",
		EnvFlushInterval:  "soon",
	}
	for key, val := range tests {
		opts := Defaults()
		if err := ApplyEnvWith(&opts, lookupMap(map[string]string{key: val})); err == nil {
			t.Errorf("%s=%q: expected error", key, val)
		}
	}
}
