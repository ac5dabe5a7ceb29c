package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyOpen = errors.New("a schedule draft is already open")
	ErrNotOpen     = errors.New("no schedule draft is open")
	ErrNotEditing  = errors.New("only an existing occurrence can be deleted")
	ErrBusy        = errors.New("a request is already in flight")
)

// ValidationError reports a draft that cannot be saved. It never reaches
// the gateway.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid draft: %s: %s", e.Field, e.Message)
}

// GatewayError wraps a store failure during Save or Delete.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
