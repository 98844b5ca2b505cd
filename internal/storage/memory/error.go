package memory

import "errors"

var (
	ErrTransactionIDNotFoundInCtx = errors.New("memory storage: no transaction id in context")
	ErrTransactionNotFound        = errors.New("memory storage: transaction not found")
)
