package version

import (
	"testing"

	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckVersionConstraint(t *testing.T) {
	tests := []struct {
		name          string
		engineVersion string
		constraint    string
		expectError   bool
		errorContains string
	}{
		{
			name:          "empty constraint",
			engineVersion: "0.4.0",
			constraint:    "",
			expectError:   false,
		},
		{
			name:          "lower bound satisfied",
			engineVersion: "0.4.0",
			constraint:    ">= 0.3.0",
			expectError:   false,
		},
		{
			name:          "v prefix",
			engineVersion: "v0.4.2",
			constraint:    "~0.4",
			expectError:   false,
		},
		{
			name:          "caret range",
			engineVersion: "1.5.0",
			constraint:    "^1.2",
			expectError:   false,
		},
		{
			name:          "development build",
			engineVersion: "main",
			constraint:    ">= 9.0.0",
			expectError:   false,
		},
		{
			name:          "engine too old",
			engineVersion: "0.2.9",
			constraint:    ">= 0.3.0",
			expectError:   true,
			errorContains: "does not satisfy",
		},
		{
			name:          "major outside caret",
			engineVersion: "2.0.0",
			constraint:    "^1.2",
			expectError:   true,
			errorContains: "does not satisfy",
		},
		{
			name:          "invalid constraint",
			engineVersion: "0.4.0",
			constraint:    ">= banana",
			expectError:   true,
			errorContains: "invalid version constraint",
		},
		{
			name:          "invalid engine version",
			engineVersion: "abc",
			constraint:    ">= 0.1.0",
			expectError:   true,
			errorContains: "invalid engine version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckVersionConstraint(tt.engineVersion, tt.constraint)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidVersionConstraint))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckConstraintUsesVersion(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	Version = "v0.4.0"
	assert.NoError(t, CheckConstraint(">= 0.4.0"))
	assert.Error(t, CheckConstraint("> 0.4.0"))
	assert.Equal(t, "v0.4.0", GetVersion())
}
