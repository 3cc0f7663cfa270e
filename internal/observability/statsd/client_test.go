package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePrefix(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]string{
		"  skilldeck.web  ": "skilldeck.web",
		"..foo..":           "foo",
		".":                 "",
		"":                  "",
	} {
		assert.Equal(t, want, sanitizePrefix(input), input)
	}
}

func TestNormalizeMetricName(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]string{
		" submission/duration ": "submission_duration",
		"foo..bar":              "foo.bar",
		"multi  space":          "multi__space",
		"":                      "",
	} {
		assert.Equal(t, want, normalizeMetricName(input), input)
	}
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	global := map[string]string{"env": "prod", " service ": " web "}
	local := map[string]string{"result": " success ", "": "ignored", "env": "stage"}

	assert.Equal(t, "|#env:stage,result:success,service:web", formatTags(global, local))
	assert.Empty(t, formatTags(nil, nil))
}

func TestCloneTagsReturnsCopy(t *testing.T) {
	t.Parallel()

	original := map[string]string{"env": "prod", "": "ignored"}
	cloned := cloneTags(original)
	cloned["env"] = "stage"

	assert.Equal(t, "prod", original["env"])
	assert.NotContains(t, cloned, "")
}

func TestClientLine(t *testing.T) {
	t.Parallel()

	c := &Client{prefix: "skilldeck", globalTags: map[string]string{"env": "test"}}
	assert.Equal(t, "skilldeck.submission.total:1|c|#env:test,skill:pdf",
		c.line("submission.total", "1", "c", map[string]string{"skill": "pdf"}))
	assert.Empty(t, c.line("  ", "1", "c", nil))

	bare := &Client{}
	assert.Equal(t, "x:2|g", bare.line("x", "2", "g", nil))
}

func TestClientWritesUDP(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	c, err := NewClient(Config{Enabled: true, Address: pc.LocalAddr().String(), Prefix: "skilldeck"})
	require.NoError(t, err)
	defer c.Close()
	require.True(t, c.Enabled())

	c.Timing("submission.duration", 1500*time.Microsecond, map[string]string{"result": "success"})

	buf := make([]byte, 512)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "skilldeck.submission.duration:1.5|ms|#result:success", string(buf[:n]))
}

func TestClientEnabledAndClose(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{conn: clientConn}
	assert.True(t, client.Enabled())
	require.NoError(t, client.Close())
	assert.False(t, client.Enabled())
	require.NoError(t, client.Close())

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
	require.NoError(t, nilClient.Close())
	nilClient.Count("ignored", 1, nil)
}

func TestNewClientDisabled(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: true, Address: "   "})
	require.NoError(t, err)
	assert.False(t, client.Enabled())

	client, err = NewClient(Config{Enabled: false, Address: "127.0.0.1:8125"})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statsd dial")
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder
	tags := map[string]string{"skill": "pdf"}
	r.Count("submission.total", 2, tags)
	r.Timing("submission.duration", 250*time.Millisecond, nil)
	tags["skill"] = "mutated"

	got := r.Named("submission.total")
	require.Len(t, got, 1)
	assert.Equal(t, Sample{Kind: "c", Name: "submission.total", Value: 2, Tags: map[string]string{"skill": "pdf"}}, got[0])
	assert.InDelta(t, 250.0, r.Named("submission.duration")[0].Value, 0.001)
	assert.Len(t, r.Samples(), 2)
}
