package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeStoreUnavailable, CategoryStore},
		{ErrCodeIndexUnavailable, CategoryIndex},
		{ErrCodeQueryTooShort, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeAccessDenied, CategoryAuth},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
		})
	}
}

func TestNew_IndexErrorsAreRecoverable(t *testing.T) {
	err := IndexError("search backend down", errors.New("connection refused"))
	assert.True(t, IsRecoverable(err), "index errors fall through to the fallback")
	assert.Equal(t, SeverityWarning, err.Severity)

	storeErr := StoreError("db unreachable", errors.New("no such file"))
	assert.False(t, IsRecoverable(storeErr), "store errors have no fallback")
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := Wrap(ErrCodeStoreQuery, cause)

	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrCodeStoreQuery, GetCode(err))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeStoreQuery, nil))
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeAccessDenied, "one", nil)
	b := New(ErrCodeAccessDenied, "other", nil)
	assert.ErrorIs(t, a, b)

	c := New(ErrCodeStoreQuery, "store", nil)
	assert.NotErrorIs(t, a, c)
}

func TestWithDetail_Chains(t *testing.T) {
	err := AccessDenied("profile-1")
	assert.Equal(t, "profile-1", err.Details["profile_id"])
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", ValidationError("bad input", nil), http.StatusBadRequest},
		{"access denied", AccessDenied("p1"), http.StatusForbidden},
		{"token missing", New(ErrCodeTokenMissing, "no token", nil), http.StatusUnauthorized},
		{"store down", StoreError("db gone", nil), http.StatusInternalServerError},
		{"product missing", New(ErrCodeProductNotFound, "nope", nil), http.StatusNotFound},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped service error", fmt.Errorf("outer: %w", AccessDenied("p2")), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}
