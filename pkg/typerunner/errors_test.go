package typerunner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckErrorUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("boom")
	err := &CheckError{Code: ErrCompile, Message: "compile failed", Cause: cause}

	assert.Same(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestCheckErrorIsComparesByCode(t *testing.T) {
	a := &CheckError{Code: ErrExecution, Message: "a"}
	b := &CheckError{Code: ErrExecution, Message: "b"}
	c := &CheckError{Code: ErrCompile, Message: "c"}

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestCheckErrorMessageIncludesCause(t *testing.T) {
	err := &CheckError{Code: ErrCompile, Message: "compile failed", Cause: errors.New("unresolved reference")}
	assert.Contains(t, err.Error(), "compile failed")
	assert.Contains(t, err.Error(), "unresolved reference")
}
