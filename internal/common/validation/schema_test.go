package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhotoUploadSchema(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		valid bool
		field string
	}{
		{"valid", `{"photos":[{"url":"s3://b/k.jpg","category":"front"}]}`, true, ""},
		{"empty list skips photos", `{"photos":[]}`, true, ""},
		{"unknown category", `{"photos":[{"url":"s3://b/k.jpg","category":"roof"}]}`, false, "photos.0.category"},
		{"missing url", `{"photos":[{"category":"rear"}]}`, false, "photos.0"},
		{"missing photos", `{}`, false, "(root)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := PhotoUploadSchema.Validate([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid, res.GetErrorMessages())
			if tt.field != "" {
				assert.True(t, res.HasErrors(tt.field), res.GetErrorMessages())
			}
		})
	}
}

func TestClaimPatchSchema(t *testing.T) {
	res, err := ClaimPatchSchema.Validate([]byte(`{}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)

	res, err = ClaimPatchSchema.Validate([]byte(`{"status":"assigned","assignedAdjuster":"Alex Thompson"}`))
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = ClaimPatchSchema.Validate([]byte(`{"scores":{}}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestValidate_MalformedJSON(t *testing.T) {
	_, err := NotificationSchema.Validate([]byte(`{not json`))
	assert.Error(t, err)
}

func TestValidateEmailAndPhone(t *testing.T) {
	assert.True(t, ValidateEmail("jane@example.com"))
	assert.False(t, ValidateEmail("jane@"))
	assert.True(t, ValidatePhone("+1 (555) 555-0123"))
	assert.False(t, ValidatePhone("12"))
}
