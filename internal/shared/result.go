package shared

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ResultError is the serialisable part of a failed Result.
type ResultError struct {
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Result is the discriminated envelope handed to transports so callers can
// render feedback without inspecting Go error types.
type Result[T any] struct {
	Status string       `json:"status"`
	Data   T            `json:"data,omitempty"`
	Error  *ResultError `json:"error,omitempty"`
}

// OK wraps a successful value.
func OK[T any](data T) Result[T] {
	return Result[T]{Status: StatusOK, Data: data}
}

// Fail converts err into an error result. The kind is always populated.
func Fail[T any](err error) Result[T] {
	kind := KindOf(err)
	if kind == "" {
		kind = KindPersistence
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Result[T]{
		Status: StatusError,
		Error: &ResultError{
			Kind:      kind,
			Message:   msg,
			Retryable: kind == KindConflict || kind == KindPersistence,
		},
	}
}

// ResultOf folds a (value, error) pair into a Result.
func ResultOf[T any](data T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return OK(data)
}

// IsOK reports whether the result succeeded.
func (r Result[T]) IsOK() bool { return r.Status == StatusOK }
