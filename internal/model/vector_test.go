package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorEmptyIsNull(t *testing.T) {
	for _, v := range []Vector{nil, {}} {
		val, err := v.Value()
		require.NoError(t, err)
		assert.Nil(t, val)
	}
}

func TestVectorScan(t *testing.T) {
	val, err := Vector{0.5, -1}.Value()
	require.NoError(t, err)
	assert.Equal(t, "[0.5,-1]", val)

	var v Vector
	require.NoError(t, v.Scan([]byte("[0.5,-1]")))
	assert.Equal(t, Vector{0.5, -1}, v)

	require.NoError(t, v.Scan(nil))
	assert.Nil(t, v)

	assert.Error(t, v.Scan(42))
}
