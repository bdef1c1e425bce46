package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionDSN(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want string
	}{
		{
			name: "defaults",
			opt:  Option{},
			want: "postgres://localhost:5432?sslmode=disable",
		},
		{
			name: "full",
			opt: Option{
				Host: "db", Port: 6543, User: "trader", Password: "p@ss",
				Database: "sentiment", SSLMode: "require",
				Params: map[string]string{"application_name": "sentitrade", "": "skip"},
			},
			want: "postgres://trader:p%40ss@db:6543/sentiment?application_name=sentitrade&sslmode=require",
		},
		{
			name: "url wins",
			opt:  Option{URL: "postgres://u@h/d", Host: "ignored"},
			want: "postgres://u@h/d",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opt.DSN()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.Nil(t, c.DB())
	assert.NoError(t, c.Close())
}
