package decode

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	To    string            `json:"to"`
	Text  string            `json:"text"`
	Count int               `json:"count"`
	Meta  map[string]string `json:"meta"`
}

func parse(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestDecodeMap(t *testing.T) {
	out, err := DecodeMap[sample](parse(t, `{"to":"bob","text":"hey","count":3,"extra":true,"meta":"{\"k\":\"v\"}"}`))
	require.NoError(t, err)
	require.Equal(t, "bob", out.To)
	require.Equal(t, "hey", out.Text)
	require.Equal(t, 3, out.Count)
	require.Equal(t, "v", out.Meta["k"])
}

func TestDecodeMapRejectsWrongShapes(t *testing.T) {
	_, err := DecodeMap[sample](nil)
	require.Error(t, err)

	_, err = DecodeMap[sample](parse(t, `"just a string"`))
	require.Error(t, err)

	_, err = DecodeMap[sample](parse(t, `{"text": 12}`))
	require.Error(t, err, "strict decoding must not coerce numbers into strings")
}
