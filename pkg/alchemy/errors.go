package alchemy

import (
	"fmt"

	"github.com/Sternrassler/alchemy-client/pkg/classify"
)

func errEmpty(field string) error {
	return fmt.Errorf("%s must not be empty", field)
}

// asBadRequest classifies an invalid caller argument as a terminal bad_request.
func asBadRequest(op string, err error) *classify.Error {
	return &classify.Error{
		Category: classify.Terminal,
		Kind:     classify.KindBadRequest,
		Message:  op + ": invalid argument",
		Err:      err,
	}
}
