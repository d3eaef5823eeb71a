package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNew(t *testing.T) {
	v, err := New("")
	require.NoError(t, err)
	assert.IsType(t, Plain{}, v)

	v, err = New(SchemeBcrypt)
	require.NoError(t, err)
	assert.IsType(t, Bcrypt{}, v)

	_, err = New("md5")
	assert.Error(t, err)
}

func TestPlain(t *testing.T) {
	v := Plain{}
	h, err := v.Hash("h1")
	require.NoError(t, err)
	assert.Equal(t, "h1", h)

	assert.True(t, v.Verify("h1", "h1"))
	assert.False(t, v.Verify("h1", "wrong"))
	assert.False(t, v.Verify("h1", ""))
}

func TestBcrypt(t *testing.T) {
	v := Bcrypt{Cost: bcrypt.MinCost}
	h, err := v.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", h)

	assert.True(t, v.Verify(h, "correct horse"))
	assert.False(t, v.Verify(h, "battery staple"))
	assert.False(t, v.Verify("not-a-hash", "correct horse"))
}
