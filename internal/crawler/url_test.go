package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDomainOf(t *testing.T) {
	t.Parallel()

	domain, err := DomainOf("https://Example.COM:8443/a/b?x=1")
	require.NoError(t, err)
	require.Equal(t, "example.com:8443", domain)

	_, err = DomainOf("/relative/only")
	require.Error(t, err)
}

func TestRequestPath(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://example.com":             "/",
		"https://example.com/a/b":         "/a/b",
		"https://example.com/search?q=go": "/search?q=go",
	}
	for raw, want := range cases {
		got, err := RequestPath(raw)
		require.NoError(t, err)
		require.Equal(t, want, got, raw)
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	t.Parallel()

	require.False(t, JobStatusPending.IsTerminal())
	require.False(t, JobStatusInProgress.IsTerminal())
	for _, s := range []JobStatus{
		JobStatusSuccess,
		JobStatusFailed,
		JobStatusForbiddenByRobots,
		JobStatusRateLimited,
	} {
		require.True(t, s.IsTerminal(), s)
	}
	require.False(t, JobStatus("BOGUS").Valid())
}
