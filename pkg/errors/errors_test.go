package errors

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseError_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("parsing keywords: %w", &ParseError{Query: "'abc", Position: 0, Reason: "unterminated sequence"})

	assert.True(t, errors.Is(err, ErrParse))
	var pe *ParseError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, 0, pe.Position)
	assert.Contains(t, err.Error(), "unterminated sequence")
}

func TestFieldError_MatchesBothCauses(t *testing.T) {
	err := &FieldError{ObjectID: "o1", Field: "Body", Err: io.ErrUnexpectedEOF}

	assert.True(t, errors.Is(err, ErrIndexConsistency))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestStoreErr(t *testing.T) {
	assert.Nil(t, StoreErr("get", nil))

	err := StoreErr("get", io.EOF)
	assert.True(t, errors.Is(err, ErrStore))
	assert.True(t, errors.Is(err, io.EOF))
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"parse", &ParseError{Reason: "x"}, http.StatusBadRequest},
		{"unsupported", Unsupported("union cursor", "ContinueAfter"), http.StatusNotImplemented},
		{"not found", fmt.Errorf("load: %w", ErrDocumentNotFound), http.StatusNotFound},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"app error", New(ErrInvalidInput, http.StatusTeapot, "odd"), http.StatusTeapot},
		{"other", io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}
