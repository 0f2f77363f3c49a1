package scheduler

import "errors"

// ErrInvokerPanic — Invoker завершился паникой при вызове узла.
var ErrInvokerPanic = errors.New("invoker panicked")
