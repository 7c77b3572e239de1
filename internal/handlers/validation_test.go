package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"

	appValidator "github.com/calebreid/mapweave/pkg/validator"
)

func TestPermissionValidationRule(t *testing.T) {
	type payload struct {
		Permission string `json:"permission" validate:"required,permission"`
	}

	for _, level := range []string{"view", "edit", "manage"} {
		require.NoError(t, appValidator.ValidateStruct(payload{Permission: level}))
	}

	err := appValidator.ValidateStruct(payload{Permission: "admin"})
	require.Error(t, err)
	require.Contains(t, formatValidationError(err), "permission must be one of view, edit or manage")
}

func TestFormatValidationErrorUsesWireNames(t *testing.T) {
	type payload struct {
		Email string `json:"email" validate:"required,email"`
	}

	err := appValidator.ValidateStruct(payload{Email: "not-an-address"})
	require.Error(t, err)
	require.Contains(t, formatValidationError(err), "email must be a valid email address")
}
