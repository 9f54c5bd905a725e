package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{common.ValidationError("bad"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{common.ErrorUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{common.ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN"},
		{common.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{common.ErrEmailNotVerified, http.StatusForbidden, "EMAIL_NOT_VERIFIED"},
		{common.ErrAccountNotLinked, http.StatusForbidden, "ACCOUNT_NOT_LINKED"},
		{common.ErrorNotFound, http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("wrapped: %w", common.ErrEmailInUse), http.StatusConflict, "EMAIL_IN_USE"},
		{common.NewStorageError("delete sessions", errors.New("conn reset")), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{errors.New("surprise"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code, msg := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
			assert.NotContains(t, msg, "conn reset")
		})
	}
}

func TestSafeRedirect(t *testing.T) {
	for in, ok := range map[string]bool{
		"/dashboard":        true,
		"/a?b=c":            true,
		"":                  false,
		"//evil.test":       false,
		"https://evil.test": false,
		"/\\evil.test":      false,
	} {
		_, got := safeRedirect(in)
		assert.Equal(t, ok, got, in)
	}
}
