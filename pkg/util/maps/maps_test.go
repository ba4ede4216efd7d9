package maps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	m := map[string]interface{}{
		"str": "foo",
		"num": 1,
		"obj": map[string]interface{}{
			"bool":  false,
			"array": []string{"toto", "tutu", "tata"},
		},
	}
	str := Get(m, "str")
	assert.Equal(t, "foo", str)

	b := Get(m, "obj.bool")
	assert.Equal(t, false, b)

	null := Get(m, "obj.bool.null")
	assert.Nil(t, null)

	missing := Get(m, "nope")
	assert.Nil(t, missing)
}

func TestDecode(t *testing.T) {
	type conf struct {
		URI  string
		Port int
	}
	in := map[string]interface{}{
		"uri":  "127.0.0.1",
		"port": 5432,
	}
	var c conf
	require.NoError(t, Decode(in, &c))
	assert.Equal(t, "127.0.0.1", c.URI)
	assert.Equal(t, 5432, c.Port)
}
