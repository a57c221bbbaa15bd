package proxy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    Proxy
		wantErr bool
	}{
		{name: "ipv4", raw: "1.1.1.1:80", want: "1.1.1.1:80"},
		{name: "trims whitespace", raw: "  2.2.2.2:8080\r", want: "2.2.2.2:8080"},
		{name: "hostname", raw: "proxy.example.com:3128", want: "proxy.example.com:3128"},
		{name: "empty", raw: "", wantErr: true},
		{name: "missing port", raw: "1.1.1.1", wantErr: true},
		{name: "port out of range", raw: "1.1.1.1:70000", wantErr: true},
		{name: "non numeric port", raw: "1.1.1.1:http", wantErr: true},
		{name: "missing host", raw: ":8080", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestProxyURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "http://1.1.1.1:80", Proxy("1.1.1.1:80").URL())
	require.Empty(t, Proxy("").URL())
	require.True(t, Proxy("").IsZero())
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	t.Parallel()

	got := Dedupe([]Proxy{"b:1", "a:1", "b:1", "c:1", "a:1"})
	require.Equal(t, []Proxy{"b:1", "a:1", "c:1"}, got)
	require.Nil(t, Dedupe(nil))
}
