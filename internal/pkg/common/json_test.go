package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jsonSample struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestParseJSON(t *testing.T) {
	t.Run("parses valid object", func(t *testing.T) {
		var v jsonSample
		require.NoError(t, ParseJSON(`{"name":"chicken","score":2.5}`, &v))
		assert.Equal(t, "chicken", v.Name)
		assert.Equal(t, 2.5, v.Score)
	})

	t.Run("rejects trailing data", func(t *testing.T) {
		var v jsonSample
		err := ParseJSON(`{"name":"chicken"}{"name":"beef"}`, &v)
		require.Error(t, err)
	})

	t.Run("bytes variant matches string variant", func(t *testing.T) {
		var a, b jsonSample
		payload := `{"name":"salmon","score":1}`
		require.NoError(t, ParseJSON(payload, &a))
		require.NoError(t, ParseJSONBytes([]byte(payload), &b))
		assert.Equal(t, a, b)
	})
}

func TestToJSON(t *testing.T) {
	t.Run("round trips through parse", func(t *testing.T) {
		in := jsonSample{Name: "tofu", Score: 3}
		s, err := ToJSON(in)
		require.NoError(t, err)

		var out jsonSample
		require.NoError(t, ParseJSON(s, &out))
		assert.Equal(t, in, out)
	})

	t.Run("unmarshalable value returns error", func(t *testing.T) {
		_, err := ToJSON(make(chan int))
		require.Error(t, err)
	})
}
