package errors

import (
	"errors"
	"fmt"
)

func New(text string) error {
	return errors.New(text)
}

func Wrap(classify, reason error) error {
	return fmt.Errorf("%w | %v", classify, reason)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}
