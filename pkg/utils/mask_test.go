package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain address",
			input:    "foo@bar.com",
			expected: "f***@bar.com",
		},
		{
			name:     "single character local part",
			input:    "a@beeswax.com",
			expected: "a***@beeswax.com",
		},
		{
			name:     "plus addressing",
			input:    "ops+stinger@cinema6.com",
			expected: "o***@cinema6.com",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "not an address",
			input:    "very good password",
			expected: "***",
		},
		{
			name:     "missing domain",
			input:    "foo@",
			expected: "***",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskEmail(tt.input))
		})
	}
}
