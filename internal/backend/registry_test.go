package backend

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultRegistryCapabilities(t *testing.T) {
	r := DefaultRegistry()

	for _, name := range []string{Quadratic, Simplex, Scalar} {
		if _, err := r.Optimizer(name); err != nil {
			t.Errorf("Optimizer(%q) failed: %v", name, err)
		}
	}

	if _, err := r.CovarianceEstimator(Quadratic); err != nil {
		t.Errorf("CovarianceEstimator(quadratic) failed: %v", err)
	}
	if _, err := r.CovarianceEstimator(Simplex); err == nil {
		t.Error("expected simplex to have no covariance capability")
	}

	for _, name := range []string{Quadratic, Scalar} {
		if _, err := r.ConfidenceEstimator(name); err != nil {
			t.Errorf("ConfidenceEstimator(%q) failed: %v", name, err)
		}
	}

	if _, err := r.ContourTracer(Quadratic); err != nil {
		t.Errorf("ContourTracer(quadratic) failed: %v", err)
	}
	if _, err := r.ContourTracer(Scalar); err == nil {
		t.Error("expected scalar to have no contour capability")
	}
}

func TestRegistryUnknownBackend(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.Get(TaskOptimize, "nonexistent")
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}

	var unknown *UnknownBackendError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownBackendError, got %T", err)
	}
	if !strings.Contains(err.Error(), "nonexistent") || !strings.Contains(err.Error(), "optimize") {
		t.Errorf("error should name both backend and task: %q", err.Error())
	}
}

func TestRegistryUnknownTask(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.Get(Task("interpolate"), Quadratic)
	if err == nil {
		t.Fatal("expected error for unknown task")
	}

	var unknown *UnknownTaskError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTaskError, got %T", err)
	}
}

func TestHasCovariance(t *testing.T) {
	r := DefaultRegistry()

	if !r.HasCovariance(Quadratic) {
		t.Error("quadratic should have covariance")
	}
	if r.HasCovariance(Simplex) {
		t.Error("simplex should not have covariance")
	}
	if r.HasCovariance("nonexistent") {
		t.Error("unknown backend should not have covariance")
	}
}
