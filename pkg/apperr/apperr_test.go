package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("register: %w", Duplicate("Username already exists. Please try again."))

	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Username already exists. Please try again.", Message(err, "oops"))
}

func TestMessageFallback(t *testing.T) {
	assert.Equal(t, "oops", Message(errors.New("boom"), "oops"))
	assert.Equal(t, "not found", (&Error{Kind: ErrNotFound}).Error())
}
