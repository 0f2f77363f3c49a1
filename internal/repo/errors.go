package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrNoDSN — не задан адрес базы данных.
	ErrNoDSN = errors.New("database url is empty")
)
