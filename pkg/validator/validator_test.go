package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRegister(t *testing.T) {
	errs := ValidateRegister("max@example.com", "max", "Max", "Sup3rSecret")
	assert.False(t, errs.HasErrors())

	errs = ValidateRegister("", "", "", "")
	assert.True(t, errs.HasErrors())
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "username")
	assert.Contains(t, errs, "display_name")
	assert.Contains(t, errs, "password")

	errs = ValidateRegister("not-an-email", "max", "Max", "Sup3rSecret")
	assert.Contains(t, errs, "email")

	errs = ValidateRegister("max@example.com", "has spaces", "Max", "Sup3rSecret")
	assert.Contains(t, errs, "username")
}

func TestValidatePasswordRules(t *testing.T) {
	for _, weak := range []string{"short1A", "alllowercase1", "ALLUPPERCASE1", "NoDigitsHere"} {
		errs := ValidateRegister("max@example.com", "max", "Max", weak)
		assert.Contains(t, errs, "password", "password %q", weak)
	}
}

func TestValidateChannel(t *testing.T) {
	assert.False(t, ValidateChannel("design").HasErrors())
	assert.False(t, ValidateChannel("dev-ops_2").HasErrors())

	for _, bad := range []string{"", "x", "has spaces", "naïve"} {
		assert.True(t, ValidateChannel(bad).HasErrors(), "name %q", bad)
	}
}

func TestValidateDisplayName(t *testing.T) {
	assert.False(t, ValidateDisplayName("Max Power").HasErrors())
	assert.True(t, ValidateDisplayName("").HasErrors())
	assert.True(t, ValidateDisplayName("x").HasErrors())
}
