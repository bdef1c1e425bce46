package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		opts []ClientOption
		want string
	}{
		{
			name: "native defaults",
			opts: []ClientOption{WithHost("ch"), WithTimeouts(0, 0, 0)},
			want: "clickhouse://ch:9000/default?dial_timeout=5s&read_timeout=10s",
		},
		{
			name: "http with credentials and async insert",
			opts: []ClientOption{
				WithHost("ch"),
				WithHTTP(true),
				WithDatabase("sentitrade"),
				WithCredentials("default", "s3cret"),
				WithTimeouts(2*time.Second, 0, 0),
				WithAsyncInsert(true, true),
				WithMaxExecutionTime(30 * time.Second),
			},
			want: "http://default:s3cret@ch:8123/sentitrade?async_insert=1&dial_timeout=2s&max_execution_time=30&read_timeout=10s&wait_for_async_insert=1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			for _, opt := range tt.opts {
				opt(cfg)
			}
			assert.Equal(t, tt.want, buildDSN(*cfg))
		})
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient()
	require.Error(t, err)
}

func TestCloseNil(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Close())
}
