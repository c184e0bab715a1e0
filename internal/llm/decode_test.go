package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	plain := `{"Name":["John Doe"]}`
	encoded, err := json.Marshal(plain)
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
	}{
		{"plain object", plain},
		{"string encoded", string(encoded)},
		{"code fence", "```json\n" + plain + "\n```"},
		{"field wrapper", `{"field":[` + plain + `]}`},
		{"field wrapper holding a string", `{"field":[` + string(encoded) + `]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DecodePayload([]byte(tt.in))
			require.NoError(t, err)
			assert.JSONEq(t, plain, string(out))
		})
	}
}

func TestDecodePayloadErrors(t *testing.T) {
	for _, in := range []string{"", "   ", "[1,2]", `"not json"`, `{"field":[]}`, `{"Name": [`} {
		_, err := DecodePayload([]byte(in))
		assert.Error(t, err, "input %q", in)
	}
}
