package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHumanSize(t *testing.T) {
	tests := []struct {
		size float64
		want string
	}{
		{1000, "1kB"},
		{1024, "1.024kB"},
		{1000000, "1MB"},
		{1048576, "1.049MB"},
		{2 * MB, "2MB"},
		{3.42 * GB, "3.42GB"},
		{5.372 * TB, "5.372TB"},
		{2.22 * PB, "2.22PB"},
		{10000000000000 * PB, "1e+04YB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, HumanSize(tt.size))
		})
	}
}

func TestFromHumanSize(t *testing.T) {
	valid := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"0b", 0},
		{"0 B", 0},
		{"0 ", 0},
		{"-0", 0},
		{"32", 32},
		{"32B", 32},
		{"32k", 32 * KB},
		{"32Kb", 32 * KB},
		{"32Mb", 32 * MB},
		{"32Gb", 32 * GB},
		{"32Tb", 32 * TB},
		{"32Pb", 32 * PB},
		{"25MB", 25 * MB},
		{"32.5kB", 32.5 * KB},
		{"32.5 kB", 32.5 * KB},
		{"32.5 B", 32},
		{"0.3 K", 300},
		{".3kB", 300},
		{"32.", 32},
		{"32. B", 32},
	}

	for _, tt := range valid {
		t.Run(tt.in, func(t *testing.T) {
			got, err := FromHumanSize(tt.in)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	invalid := []string{
		"", " ", ".", " 0", "0b ", "0 B ", "hello", "-32", "-32 B",
		"32b.", "32 bb", "32 b b", "32  b", " 32 ", "32m b", "32bm", "32kbb",
	}

	for _, in := range invalid {
		t.Run("invalid_"+in, func(t *testing.T) {
			got, err := FromHumanSize(in)
			assert.Error(t, err)
			assert.Equal(t, int64(-1), got)
		})
	}
}
