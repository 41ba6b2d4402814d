package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	id := uuid.New()

	signed, err := m.Issue(id)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	got, err := m.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestParseExpired(t *testing.T) {
	m := NewManager("test-secret", -time.Minute)

	signed, err := m.Issue(uuid.New())
	require.NoError(t, err)

	_, err = m.Parse(signed)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseWrongSecret(t *testing.T) {
	signed, err := NewManager("secret-a", time.Hour).Issue(uuid.New())
	require.NoError(t, err)

	_, err = NewManager("secret-b", time.Hour).Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseGarbage(t *testing.T) {
	m := NewManager("test-secret", time.Hour)

	_, err := m.Parse("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
