package genai

import (
	"testing"
	"time"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Error("NewClient without an API key should fail")
	}
}

func TestNewClientOptions(t *testing.T) {
	c, err := NewClient(WithAPIKey("test-key"), WithTimeout(3*time.Second))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.timeout != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", c.timeout)
	}
}
