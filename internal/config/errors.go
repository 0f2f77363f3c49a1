package config

import (
	"errors"
	"fmt"
)

// ErrInvalidValue — значение переменной окружения вне допустимого диапазона.
var ErrInvalidValue = errors.New("invalid value")

// EnvError — ошибка разбора переменной окружения.
type EnvError struct {
	Key   string
	Value string
	Err   error
}

func (e *EnvError) Error() string {
	return fmt.Sprintf("env %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *EnvError) Unwrap() error {
	return e.Err
}
