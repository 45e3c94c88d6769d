package backend

import "fmt"

// Registry maps (task, backend name) to an adapter implementation. It is a
// pure lookup table assembled at construction time: unknown combinations
// fail fast with a configuration error, there are no partial matches or
// fallbacks.
type Registry struct {
	optimizers map[string]Optimizer
	covariance map[string]CovarianceEstimator
	confidence map[string]ConfidenceEstimator
	contour    map[string]ContourTracer
}

// DefaultRegistry returns the registry with the built-in backends:
//
//	optimize:   quadratic, simplex, scalar
//	covariance: quadratic
//	confidence: quadratic, scalar
//	contour:    quadratic
func DefaultRegistry() *Registry {
	quadratic := NewQuadratic()
	simplex := NewSimplex()
	scalar := NewScalar()

	return &Registry{
		optimizers: map[string]Optimizer{
			Quadratic: quadratic,
			Simplex:   simplex,
			Scalar:    scalar,
		},
		covariance: map[string]CovarianceEstimator{
			Quadratic: quadratic,
		},
		confidence: map[string]ConfidenceEstimator{
			Quadratic: quadratic,
			Scalar:    scalar,
		},
		contour: map[string]ContourTracer{
			Quadratic: quadratic,
		},
	}
}

// Get returns the adapter registered for the task and backend name, or a
// configuration error naming the unknown task or backend.
func (r *Registry) Get(task Task, name string) (any, error) {
	switch task {
	case TaskOptimize:
		return r.Optimizer(name)
	case TaskCovariance:
		return r.CovarianceEstimator(name)
	case TaskConfidence:
		return r.ConfidenceEstimator(name)
	case TaskContour:
		return r.ContourTracer(name)
	default:
		return nil, &UnknownTaskError{Task: task}
	}
}

// Optimizer returns the optimizer registered under name.
func (r *Registry) Optimizer(name string) (Optimizer, error) {
	b, ok := r.optimizers[name]
	if !ok {
		return nil, &UnknownBackendError{Task: TaskOptimize, Backend: name}
	}
	return b, nil
}

// CovarianceEstimator returns the covariance adapter registered under name.
func (r *Registry) CovarianceEstimator(name string) (CovarianceEstimator, error) {
	b, ok := r.covariance[name]
	if !ok {
		return nil, &UnknownBackendError{Task: TaskCovariance, Backend: name}
	}
	return b, nil
}

// ConfidenceEstimator returns the confidence adapter registered under name.
func (r *Registry) ConfidenceEstimator(name string) (ConfidenceEstimator, error) {
	b, ok := r.confidence[name]
	if !ok {
		return nil, &UnknownBackendError{Task: TaskConfidence, Backend: name}
	}
	return b, nil
}

// ContourTracer returns the contour adapter registered under name.
func (r *Registry) ContourTracer(name string) (ContourTracer, error) {
	b, ok := r.contour[name]
	if !ok {
		return nil, &UnknownBackendError{Task: TaskContour, Backend: name}
	}
	return b, nil
}

// HasCovariance reports whether the named backend can estimate covariance.
func (r *Registry) HasCovariance(name string) bool {
	_, ok := r.covariance[name]
	return ok
}

// UnknownTaskError reports a lookup for a task the registry does not know.
type UnknownTaskError struct {
	Task Task
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task %q", string(e.Task))
}

// UnknownBackendError reports a backend that is not registered for a task.
type UnknownBackendError struct {
	Task    Task
	Backend string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown backend %q for task %q", e.Backend, string(e.Task))
}
