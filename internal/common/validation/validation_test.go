package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"ana@club.com", true},
		{"  ana@club.com ", true},
		{"ana.perez+admin@club.example.es", true},
		{"not-an-email", false},
		{"ana@", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateEmail(tt.email))
		})
	}
}

func TestSchema_ValidateJSON(t *testing.T) {
	schema, err := CompileSchema(`{
		"type": "object",
		"properties": {"tenantName": {"type": "string", "minLength": 1}},
		"required": ["tenantName"],
		"additionalProperties": false
	}`)
	require.NoError(t, err)

	ok, err := schema.ValidateJSON([]byte(`{"tenantName":"Club X"}`))
	require.NoError(t, err)
	assert.True(t, ok.Valid)

	bad, err := schema.ValidateJSON([]byte(`{"name":"Club X"}`))
	require.NoError(t, err)
	assert.False(t, bad.Valid)
	assert.NotEmpty(t, bad.GetErrorMessages())

	_, err = schema.ValidateJSON([]byte(`{not json`))
	assert.Error(t, err)
}

type request struct {
	Name  string   `validate:"required"`
	Email string   `validate:"required,email"`
	Tags  []string `validate:"min=1"`
}

func TestValidateStruct(t *testing.T) {
	assert.True(t, ValidateStruct(request{Name: "x", Email: "a@b.co", Tags: []string{"t"}}).Valid)

	res := ValidateStruct(request{Email: "nope"})
	assert.False(t, res.Valid)
	assert.True(t, res.HasErrors("request.Name"))
	assert.True(t, res.HasErrors("request.Email"))
	assert.True(t, res.HasErrors("request.Tags"))
}
