package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name     string `json:"name" validate:"required"`
	Severity string `json:"severity" validate:"required,oneof=mild moderate severe critical"`
}

type request struct {
	Items []item `json:"items" validate:"required,min=1,dive"`
	Age   int    `json:"age" validate:"gte=0,lte=150"`
}

func TestValidateReportsJSONFieldPaths(t *testing.T) {
	v := New()

	err := v.Validate(&request{Items: []item{{Name: "", Severity: "extreme"}}, Age: 200})
	require.Error(t, err)

	var verrs Errors
	require.True(t, errors.As(err, &verrs))

	fields := map[string]string{}
	for _, fe := range verrs {
		fields[fe.Field] = fe.Rule
	}
	assert.Equal(t, "required", fields["items[0].name"])
	assert.Equal(t, "oneof", fields["items[0].severity"])
	assert.Equal(t, "lte", fields["age"])
}

func TestValidateEmptySlice(t *testing.T) {
	err := New().Validate(&request{Items: []item{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "items must contain at least 1 item(s)")
}

func TestValidateAcceptsGoodInput(t *testing.T) {
	err := New().Validate(&request{Items: []item{{Name: "fever", Severity: "mild"}}, Age: 0})
	assert.NoError(t, err)
}

func TestValidateField(t *testing.T) {
	v := New()
	assert.NoError(t, v.ValidateField("threshold", 0.4, "gt=0", "lte=1"))
	err := v.ValidateField("threshold", 1.4, "gt=0", "lte=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threshold must be less than or equal to 1")
}
