//go:build unit

package serde_test

import (
	"testing"

	"github.com/hugolhafner/go-transit/serde"
	"github.com/stretchr/testify/require"
)

func TestString_Serialise(t *testing.T) {
	out, err := serde.String().Serialise("stations", "Clark/Lake")
	require.NoError(t, err)
	require.Equal(t, []byte("Clark/Lake"), out)
}

func TestString_Deserialise(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    string
		wantErr bool
	}{
		{name: "station key", input: []byte("40380"), want: "40380"},
		{name: "null key", input: nil, want: ""},
		{name: "multibyte", input: []byte("Hàrlem/Lake"), want: "Hàrlem/Lake"},
		{name: "invalid utf-8", input: []byte{0xff, 0xfe, 'a'}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				got, err := serde.String().Deserialise("stations", tt.input)
				if tt.wantErr {
					require.ErrorContains(t, err, "stations")
					return
				}
				require.NoError(t, err)
				require.Equal(t, tt.want, got)
			},
		)
	}
}
