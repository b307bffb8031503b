package termloop

import (
	"errors"
	"testing"
	"time"
)

func TestResolveLoopOptions_Defaults(t *testing.T) {
	cfg, err := resolveLoopOptions(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.tickPeriod != 0 || cfg.maxSources != 0 || cfg.environment != nil || cfg.logger != nil {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.backend == nil {
		t.Fatal("expected a default backend")
	}
}

func TestResolveLoopOptions_NilSkipped(t *testing.T) {
	cfg, err := resolveLoopOptions([]LoopOption{nil, WithTickPeriod(time.Second), nil, WithMaxSources(3)})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.tickPeriod != time.Second {
		t.Errorf("tickPeriod = %v", cfg.tickPeriod)
	}
	if cfg.maxSources != 3 {
		t.Errorf("maxSources = %d", cfg.maxSources)
	}
}

func TestResolveLoopOptions_Invalid(t *testing.T) {
	if _, err := resolveLoopOptions([]LoopOption{WithTickPeriod(-time.Second)}); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("expected ErrInvalidPeriod, got %v", err)
	}
	if _, err := resolveLoopOptions([]LoopOption{WithMaxSources(-1)}); err == nil {
		t.Error("expected an error for negative max sources")
	}
	if _, err := New[struct{}](WithTickPeriod(-1)); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("expected New to fail, got %v", err)
	}
}

func TestNew_BackendFailure(t *testing.T) {
	_, err := New[struct{}](withBackend(func() (backend, error) { return nil, ErrUnsupportedPlatform }))
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestEnvironmentFuncs(t *testing.T) {
	var zero EnvironmentFuncs
	if err := zero.Enter(); err != nil {
		t.Fatal(err)
	}
	if err := zero.Leave(); err != nil {
		t.Fatal(err)
	}

	errLeave := errors.New("leave")
	var entered bool
	env := EnvironmentFuncs{
		EnterFunc: func() error { entered = true; return nil },
		LeaveFunc: func() error { return errLeave },
	}
	if err := env.Enter(); err != nil || !entered {
		t.Fatal("expected EnterFunc to be called")
	}
	if err := env.Leave(); !errors.Is(err, errLeave) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	for _, err := range []error{
		&SetupError{Err: cause},
		&TeardownError{Err: cause},
		&RegistrationError{Err: cause, Token: RegistrationToken{key: 2}},
		&PollError{Err: cause},
		&SourceError{Err: cause, Token: RegistrationToken{key: 3}},
	} {
		if !errors.Is(err, cause) {
			t.Errorf("%T does not unwrap", err)
		}
		if err.Error() == "" {
			t.Errorf("%T has an empty message", err)
		}
	}
}
