package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Name  string   `json:"name"`
	Age   int      `json:"age"`
	Roles []string `json:"roles"`
}

func TestJSONRoundTrip(t *testing.T) {
	c := NewJSON()

	in := profile{Name: "ada", Age: 36, Roles: []string{"admin"}}
	s, err := c.Encode(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"ada","age":36,"roles":["admin"]}`, s)

	var out profile
	require.NoError(t, c.Decode(s, &out))
	assert.Equal(t, in, out)
}

func TestJSONStringIsQuoted(t *testing.T) {
	c := NewJSON()

	s, err := c.Encode("hello")
	require.NoError(t, err)
	assert.Equal(t, `"hello"`, s)

	var out string
	require.NoError(t, c.Decode(s, &out))
	assert.Equal(t, "hello", out)
}

func TestJSONErrors(t *testing.T) {
	c := NewJSON()

	_, err := c.Encode(math.Inf(1))
	assert.ErrorIs(t, err, ErrSerialization)

	_, err = c.Encode(make(chan int))
	assert.ErrorIs(t, err, ErrSerialization)

	var n int
	err = c.Decode(`"not a number"`, &n)
	assert.ErrorIs(t, err, ErrSerialization)

	err = c.Decode(`{broken`, &n)
	assert.ErrorIs(t, err, ErrSerialization)
}
