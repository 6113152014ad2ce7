package s3

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsS3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRoundTripper is a tiny fake S3 supporting object GET and PUT
type mockRoundTripper struct {
	mu    sync.Mutex
	state map[string][]byte
	paths []string
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// path style: /bucket/key
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	m.paths = append(m.paths, req.URL.Path)

	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		m.state[key] = body
		return response(200, nil, http.Header{"ETag": {"\"etag\""}}), nil
	case http.MethodGet:
		body, ok := m.state[key]
		if !ok {
			return response(404, []byte(`<?xml version="1.0" encoding="UTF-8"?>`+
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`),
				http.Header{"Content-Type": {"application/xml"}}), nil
		}
		return response(200, body, http.Header{
			"Content-Length": {strconv.Itoa(len(body))},
			"Content-Type":   {"application/json"},
		}), nil
	}
	return response(501, nil, http.Header{}), nil
}

func response(code int, body []byte, h http.Header) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(bytes.NewReader(body)), Header: h}
}

func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	n, err := strconv.ParseInt(parts[0], 16, 64)
	if err != nil || n <= 0 || int64(len(parts[1])) != n {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newMockStore(t *testing.T, prefix string) (*Store, *mockRoundTripper) {
	t.Helper()
	rt := &mockRoundTripper{state: make(map[string][]byte)}
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)
	client := awsS3.NewFromConfig(cfg, func(o *awsS3.Options) {
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return NewWithClient(client, "test-bucket", prefix), rt
}

func TestStoreGetSet(t *testing.T) {
	ctx := context.Background()
	store, rt := newMockStore(t, "")

	_, ok, err := store.Get(ctx, "netbloom_positions_lan")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "netbloom_positions_lan", `{"hub":{"x":1,"y":2}}`))

	v, ok, err := store.Get(ctx, "netbloom_positions_lan")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"hub":{"x":1,"y":2}}`, v)
	assert.Contains(t, rt.paths, "/test-bucket/netbloom_positions_lan")
	assert.NoError(t, store.Close())
}

func TestStorePrefix(t *testing.T) {
	ctx := context.Background()
	store, rt := newMockStore(t, "layouts/")

	require.NoError(t, store.Set(ctx, "k", "v"))
	_, ok := rt.state["layouts/k"]
	assert.True(t, ok)

	v, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "SECRET")

	s, err := New(context.Background(), Config{Bucket: "bkt", Endpoint: "https://mock.s3.local", PathStyle: true})
	require.NoError(t, err)
	assert.Equal(t, "bkt", s.bucket)
}
