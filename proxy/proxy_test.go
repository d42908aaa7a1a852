package proxy

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRobinProxySwitcher(t *testing.T) {
	p, err := RoundRobinProxySwitcher("http://127.0.0.1:8001", "http://127.0.0.1:8002")
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, "https://fr.indeed.com/jobs", nil)
	var hosts []string
	for i := 0; i < 3; i++ {
		u, err := p(req)
		require.NoError(t, err)
		hosts = append(hosts, u.Host)
	}
	assert.Equal(t, []string{"127.0.0.1:8001", "127.0.0.1:8002", "127.0.0.1:8001"}, hosts)
}

func TestRoundRobinProxySwitcherInvalid(t *testing.T) {
	tests := []struct {
		name string
		urls []string
	}{
		{name: "empty"},
		{name: "no host", urls: []string{"not-a-url"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RoundRobinProxySwitcher(tt.urls...)
			assert.Error(t, err)
		})
	}
}
