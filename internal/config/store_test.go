package config

import (
	"testing"
)

func TestStore_Apply(t *testing.T) {
	s, err := NewStore(Defaults())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()

	var got []*Config
	sub := s.Subscribe(func(c *Config) { got = append(got, c) })
	defer sub.Unsubscribe()

	opts := Defaults()
	opts.Enabled = false
	if err := s.Apply(opts); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if s.Current().Enabled() {
		t.Error("Current().Enabled() = true after disabling")
	}
	if len(got) != 1 || got[0] != s.Current() {
		t.Errorf("subscriber got %d notifications", len(got))
	}
}

func TestStore_ApplyInvalidKeepsPrevious(t *testing.T) {
	s, err := NewStore(Defaults())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()

	before := s.Current()
	notified := false
	s.Subscribe(func(*Config) { notified = true })

	opts := Defaults()
	opts.ExcludeFilePathPatterns = []string{"[unclosed"}
	if err := s.Apply(opts); err == nil {
		t.Fatal("expected error")
	}

	if s.Current() != before {
		t.Error("snapshot replaced after failed Apply")
	}
	if notified {
		t.Error("subscriber notified after failed Apply")
	}
}

func TestStore_AddCommentExclusion(t *testing.T) {
	s, err := NewStore(Defaults())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()

	count := 0
	s.Subscribe(func(*Config) { count++ })

	for i := 0; i < 2; i++ {
		if err := s.AddCommentExclusion("a.go: fix"); err != nil {
			t.Fatalf("AddCommentExclusion: %v", err)
		}
	}

	if !s.Current().IsCommentExcluded("a.go: fix") {
		t.Error("exclusion not applied")
	}
	if n := len(s.Current().Options().ExcludeExactComments); n != 1 {
		t.Errorf("len(ExcludeExactComments) = %d, want 1", n)
	}
	if count != 1 {
		t.Errorf("notifications = %d, want 1", count)
	}
}
