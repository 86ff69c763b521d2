package cache

import (
	"errors"
	"testing"
)

type UserProfile struct{}

type envelope[T any] struct{ V T }

func TestNewKeySerializer(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		typeName  string
		id        string
		wantKey   string
	}{
		{"namespace and type", "app", "user", "42", "app:user:42"},
		{"type only", "", "user", "42", "user:42"},
		{"namespace only", "app", "", "42", "app:42"},
		{"bare", "", "", "42", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewKeySerializer(tt.namespace, tt.typeName)

			key := s.SerializeKey(tt.id)
			if key != tt.wantKey {
				t.Fatalf("SerializeKey() = %q, want %q", key, tt.wantKey)
			}

			id, ok := s.DeserializeKey(key)
			if !ok || id != tt.id {
				t.Errorf("DeserializeKey(%q) = %q, %v", key, id, ok)
			}
		})
	}
}

func TestKeySerializer_ForeignKey(t *testing.T) {
	s := NewKeySerializer("app", "user")

	if _, ok := s.DeserializeKey("app:order:1"); ok {
		t.Error("expected key from another type namespace to be rejected")
	}

	if s.Prefix() != "app:user:" {
		t.Errorf("Prefix() = %q", s.Prefix())
	}
}

func TestKeySerializer_IDWithSeparator(t *testing.T) {
	s := NewKeySerializer("app", "user")

	id, ok := s.DeserializeKey(s.SerializeKey("tenant:7"))
	if !ok || id != "tenant:7" {
		t.Errorf("expected id with separators to survive, got %q (%v)", id, ok)
	}
}

func TestTypeNamespace(t *testing.T) {
	if got := TypeNamespace[UserProfile](); got != "user_profile" {
		t.Errorf("TypeNamespace[UserProfile]() = %q", got)
	}
	if got := TypeNamespace[*UserProfile](); got != "user_profile" {
		t.Errorf("TypeNamespace[*UserProfile]() = %q", got)
	}
	if got := TypeNamespace[envelope[int]](); got != "envelope" {
		t.Errorf("TypeNamespace[envelope[int]]() = %q", got)
	}
	if got := NewTypedKeySerializer[*UserProfile]("svc").SerializeKey("1"); got != "svc:user_profile:1" {
		t.Errorf("typed key = %q", got)
	}
}

func TestToSnake(t *testing.T) {
	tests := map[string]string{
		"":            "",
		"User":        "user",
		"UserProfile": "user_profile",
		"HTTPServer":  "http_server",
		"Model2Repo":  "model_2_repo",
		"*main.User":  "main_user",
		"already_ok":  "already_ok",
		"with-dash":   "with_dash",
	}

	for in, want := range tests {
		if got := toSnake(in); got != want {
			t.Errorf("toSnake(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cfg.Capacity = 0
	err := cfg.Validate()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "Capacity" {
		t.Errorf("expected Capacity config error, got %v", err)
	}

	if _, err := NewClient[int](DefaultConfig()); err != nil {
		t.Errorf("NewClient() failed: %v", err)
	}
}
