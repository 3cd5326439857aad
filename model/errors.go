package model

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedChannel = errors.New("unsupported channel")

// UnknownTypeError is returned when a union discriminator holds a value with
// no matching variant.
type UnknownTypeError struct {
	Union string
	Value string
	Known []string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown %s type %q (known: %s)", e.Union, e.Value, strings.Join(e.Known, ", "))
}
