package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=owner member"`
}

func TestValidate(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&signup{Email: "a@b.co", Password: "longenough"}))

	err := v.Validate(&signup{Email: "nope", Password: "short", Role: "admin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email must be a valid email")
	assert.Contains(t, err.Error(), "password must be min 8")
	assert.Contains(t, err.Error(), "role must be one of [owner member]")

	err = v.Validate(&signup{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email is required")
}
