// Package storage persists ticket documents as whole objects under a path.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

type Op string

const (
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpList   Op = "list"
	OpExists Op = "exists"
)

// Error records which call failed on which object. ErrNotFound is reachable
// through errors.Is.
type Error struct {
	Op   Op
	Path string
	Err  error
}

func (e *Error) Error() string {
	return string(e.Op) + " " + e.Path + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
}
