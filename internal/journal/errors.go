package journal

import "errors"

var (
	ErrNilDB = errors.New("journal database is nil")
)
