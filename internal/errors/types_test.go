package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineErrorError(t *testing.T) {
	err := NewIOError(CodeWriteFailed, "unable to write", fs.ErrPermission).WithPath("build/app.css")

	msg := err.Error()
	assert.Contains(t, msg, "[ERR_WRITE_FAILED]")
	assert.Contains(t, msg, "build/app.css")
	assert.Contains(t, msg, "unable to write")
	assert.Contains(t, msg, fs.ErrPermission.Error())
}

func TestPipelineErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("expected \"{\"")
	err := NewCompileError("styles/app.scss", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "styles/app.scss", err.Path)
}

func TestPipelineErrorIs(t *testing.T) {
	a := NewIOError(CodeRemoveFailed, "a", nil)
	b := NewIOError(CodeRemoveFailed, "b", nil)
	c := NewIOError(CodeWriteFailed, "c", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestClassification(t *testing.T) {
	compileErr := fmt.Errorf("wrapped: %w", NewCompileError("a.jade", errors.New("boom")))
	ioErr := NewIOError(CodeWriteFailed, "unable to write", nil)

	assert.True(t, IsCompileError(compileErr))
	assert.False(t, IsIOError(compileErr))
	assert.True(t, IsIOError(ioErr))
	assert.False(t, IsConfigError(ioErr))
	assert.False(t, IsCompileError(errors.New("plain")))
}

func TestValidationErrors(t *testing.T) {
	var v ValidationErrors
	require.NoError(t, v.Err())

	v.Add(CodeMissingFlag, "no css path provided")
	v.Add(CodeMissingFlag, "no destination path provided")

	err := v.Err()
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Equal(t, "no css path provided\nno destination path provided", err.Error())
	assert.Len(t, v, 2)
}
