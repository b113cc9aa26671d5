package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingPayload struct {
	PickupID      int    `json:"pickupLocationId" binding:"required,gt=0"`
	DestinationID int    `json:"destinationLocationId" binding:"required,gt=0"`
	Mode          string `json:"mode" binding:"omitempty,rate_mode"`
}

func TestValidateStruct_Valid(t *testing.T) {
	err := ValidateStruct(bookingPayload{PickupID: 1, DestinationID: 3, Mode: "night"})
	assert.NoError(t, err)
}

func TestValidateStruct_FieldErrors(t *testing.T) {
	err := ValidateStruct(bookingPayload{PickupID: 0, DestinationID: 2, Mode: "dusk"})
	require.Error(t, err)

	valErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.True(t, valErr.HasErrors())
	assert.Equal(t, "PickupID is required", valErr.Errors["PickupID"])
	assert.Equal(t, "Mode must be a valid rate mode (day, night)", valErr.Errors["Mode"])
	assert.Equal(t, "Mode: Mode must be a valid rate mode (day, night); PickupID: PickupID is required", valErr.Error())
}

func TestValidationError_AddError(t *testing.T) {
	var v ValidationError
	assert.False(t, v.HasErrors())

	v.AddError("destination", "must differ")
	assert.True(t, v.HasErrors())
	assert.Equal(t, "destination: must differ", v.Error())
}

func TestFromBindError_PassesThroughOtherErrors(t *testing.T) {
	assert.Nil(t, FromBindError(nil))

	plain := assert.AnError
	assert.Equal(t, plain, FromBindError(plain))
}
