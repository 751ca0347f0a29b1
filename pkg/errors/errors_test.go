package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	dup := fmt.Errorf("building index: %w", &DuplicateDocumentError{DocID: "doc1.txt"})
	assert.True(t, errors.Is(dup, ErrDuplicateDocument))
	assert.Contains(t, dup.Error(), `"doc1.txt"`)

	var dupErr *DuplicateDocumentError
	assert.True(t, errors.As(dup, &dupErr))
	assert.Equal(t, "doc1.txt", dupErr.DocID)

	missing := &MissingFieldError{Index: 2, Field: "question"}
	assert.True(t, errors.Is(missing, ErrMissingField))
	assert.Equal(t, "missing required field: record 2 lacks question", missing.Error())
	assert.Equal(t, "missing required field: id", (&MissingFieldError{Index: -1, Field: "id"}).Error())
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&MissingFieldError{Index: -1, Field: "id"}, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", ErrInvalidInput), http.StatusBadRequest},
		{&DuplicateDocumentError{DocID: "a"}, http.StatusConflict},
		{ErrDocumentNotFound, http.StatusNotFound},
		{New(ErrInternal, http.StatusTeapot, "custom"), http.StatusTeapot},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatusCode(tt.err), tt.err.Error())
	}
}
