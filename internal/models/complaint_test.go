package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewComplaintValidate(t *testing.T) {
	tests := []struct {
		name      string
		in        NewComplaint
		wantField string
	}{
		{"valid", NewComplaint{Type: TypePipeBurst, Location: "X"}, ""},
		{"missing type", NewComplaint{Location: "X"}, "type"},
		{"blank location", NewComplaint{Type: TypeOther, Location: "   "}, "location"},
		{"bad email", NewComplaint{Type: TypeOther, Location: "X", OwnerEmail: "nope"}, "owner_email"},
		{"good email", NewComplaint{Type: TypeOther, Location: "X", OwnerEmail: "a@b.in"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestStatusUpdateValidate(t *testing.T) {
	assert.NoError(t, StatusUpdate{Status: StatusInProgress}.Validate())
	assert.NoError(t, StatusUpdate{Status: StatusResolved}.Validate())

	err := StatusUpdate{Status: "Closed"}.Validate()
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	assert.True(t, IsValidation(StatusUpdate{}.Validate()))
}

func TestComplaintDecodesLegacyID(t *testing.T) {
	var c Complaint
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"abc","type":"Pipe Burst","location":"X","status":"Open"}`), &c))
	assert.Equal(t, "abc", c.ID)
	assert.Equal(t, TypePipeBurst, c.Type)

	var both Complaint
	require.NoError(t, json.Unmarshal([]byte(`{"id":"new","_id":"old","status":"Resolved"}`), &both))
	assert.Equal(t, "new", both.ID)
	assert.Equal(t, StatusResolved, both.Status)

	out, err := json.Marshal(both)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "_id")
}

func TestTelemetrySampleValidate(t *testing.T) {
	assert.NoError(t, TelemetrySample{WaterLevelFeet: 40, PH: 7, TurbidityNTU: 2}.Validate())

	err := TelemetrySample{WaterLevelFeet: math.NaN(), PH: 7}.Validate()
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	err = TelemetrySample{WaterLevelFeet: 1, PH: 7, TurbidityNTU: math.Inf(1)}.Validate()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "turbidity_ntu", ve.Field)
}
