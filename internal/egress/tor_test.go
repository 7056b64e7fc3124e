package egress

import (
	"errors"
	"testing"
	"time"
)

// TestNewEmbeddedTor tests EmbeddedTor constructor.
func TestNewEmbeddedTor(t *testing.T) {
	t.Parallel()

	t.Run("creates with default timeout", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor()
		if embedded.StartupTimeout() != DefaultTorStartupTimeout {
			t.Errorf("expected default timeout %v, got %v", DefaultTorStartupTimeout, embedded.StartupTimeout())
		}
	})

	t.Run("applies WithStartupTimeout", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor(WithStartupTimeout(5 * time.Minute))
		if embedded.StartupTimeout() != 5*time.Minute {
			t.Errorf("expected timeout 5m, got %v", embedded.StartupTimeout())
		}
	})

	t.Run("ignores non-positive timeout", func(t *testing.T) {
		t.Parallel()

		embedded := NewEmbeddedTor(WithStartupTimeout(0))
		if embedded.StartupTimeout() != DefaultTorStartupTimeout {
			t.Errorf("expected default timeout, got %v", embedded.StartupTimeout())
		}
	})
}

// TestEmbeddedTorBeforeStart tests EmbeddedTor methods without starting Tor.
func TestEmbeddedTorBeforeStart(t *testing.T) {
	t.Parallel()

	embedded := NewEmbeddedTor()
	if embedded.SocksAddr() != "" || embedded.ControlAddr() != "" {
		t.Error("expected empty addresses before start")
	}
	if embedded.IsRunning() {
		t.Error("expected IsRunning to be false before start")
	}
	if err := embedded.Stop(); err != nil {
		t.Errorf("expected no error stopping unstarted instance, got %v", err)
	}
	if err := embedded.Stop(); err != nil {
		t.Errorf("expected second Stop to succeed, got %v", err)
	}
	if _, err := embedded.NewClient(30 * time.Second); !errors.Is(err, ErrTorNotRunning) {
		t.Errorf("expected ErrTorNotRunning, got %v", err)
	}
}
