package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHashStable(t *testing.T) {
	a := Object{"name": String("Ada"), "age": Int(36)}
	b := Object{"age": Int(36), "name": String("Ada")}

	ha, err := ContentHash(a)
	require.NoError(t, err)
	hb, err := ContentHash(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestContentHashDiffersOnChange(t *testing.T) {
	a := MustContentHash(Object{"name": String("Ada")})
	b := MustContentHash(Object{"name": String("Grace")})
	assert.NotEqual(t, a, b)
}

func TestContentHashIgnoresNulls(t *testing.T) {
	a := MustContentHash(Object{"name": String("Ada"), "nick": Null{}})
	b := MustContentHash(Object{"name": String("Ada")})
	assert.Equal(t, a, b)
}

func TestHashDomainSeparation(t *testing.T) {
	v := Object{"k": Int(1)}
	h1, err := Hash(DomainChangeset, v)
	require.NoError(t, err)
	h2, err := Hash(DomainSnapshot, v)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
