package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestChecker_IsWhitelisted(t *testing.T) {
	c := NewChecker([]string{" Example.COM ", "", "corp.example.org"}, zap.NewNop())

	tests := []struct {
		from string
		want bool
	}{
		{"alice@example.com", true},
		{"Alice <alice@EXAMPLE.com>", true},
		{"\"Bob, Jr.\" <bob@corp.example.org>", true},
		{"eve@evil.example.com", false},
		{"not an address", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.IsWhitelisted(tt.from), tt.from)
	}
}

func TestChecker_Empty(t *testing.T) {
	c := NewChecker(nil, nil)
	assert.False(t, c.IsWhitelisted("alice@example.com"))
}
