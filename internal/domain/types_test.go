package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalCityName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"moscow", "Moscow"},
		{"MOSCOW", "Moscow"},
		{"Moscow", "Moscow"},
		{"  kyiv  ", "Kyiv"},
		{"sAiNt pEtErSbUrG", "Saint petersburg"},
		{"łódź", "Łódź"},
		{"", ""},
		{"   ", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, CanonicalCityName(tc.in), "input %q", tc.in)
	}
}
