package repository

import "errors"

var (
	ErrAlreadyExists = errors.New("row already exists")
	ErrNotFound      = errors.New("no rows found")
)
