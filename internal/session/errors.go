package session

import "errors"

var (
	ErrAlreadyRunning = errors.New("already running")
	ErrDuplicateConn  = errors.New("connection already registered")
)
