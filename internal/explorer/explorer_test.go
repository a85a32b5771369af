package explorer

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"nodewatch/internal/protocol"
	"nodewatch/internal/test/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExplorer(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(WithBaseURL(srv.URL), WithRetry(2, time.Millisecond, 5*time.Millisecond))
}

func TestBaseURL(t *testing.T) {
	c := New()
	url, err := c.BaseURL(protocol.NetworkNextnet)
	require.NoError(t, err)
	assert.Equal(t, "https://textexplore-nextnet.tari.com", url)

	_, err = c.BaseURL("devnet")
	assert.Error(t, err)

	c = New(WithBaseURL("http://localhost:9000/"))
	url, err = c.BaseURL(protocol.NetworkMainnet)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", url)
}

func TestGetBestBlock(t *testing.T) {
	tests := []struct {
		name string
		body string
		want uint64
	}{
		{"number", `{"tipInfo":{"metadata":{"best_block_height":41234}}}`, 41234},
		{"string", `{"tipInfo":{"metadata":{"best_block_height":"41235"}}}`, 41235},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/", r.URL.Path)
				assert.Equal(t, "json", r.URL.RawQuery)
				_, _ = w.Write([]byte(tt.body))
			})
			got, err := c.GetBestBlock(testutil.NewTestContext(t), protocol.NetworkMainnet)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetBestBlockMalformed(t *testing.T) {
	c := newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tipInfo":{}}`))
	})
	_, err := c.GetBestBlock(testutil.NewTestContext(t), protocol.NetworkMainnet)
	assert.Error(t, err)

	c = newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})
	_, err = c.GetBestBlock(testutil.NewTestContext(t), protocol.NetworkMainnet)
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestGetBlockInfo(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"hex string", `{"header":{"height":"100","hash":"ABCD01"}}`},
		{"byte array", `{"header":{"height":100,"hash":[171,205,1]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/blocks/100", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			})
			got, err := c.GetBlockInfo(testutil.NewTestContext(t), protocol.NetworkMainnet, 100)
			require.NoError(t, err)
			assert.Equal(t, protocol.Block{Height: 100, Hash: "abcd01"}, got)
		})
	}
}

func TestGetBlockInfoNotFound(t *testing.T) {
	c := newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	_, err := c.GetBlockInfo(testutil.NewTestContext(t), protocol.NetworkMainnet, 7)
	assert.ErrorIs(t, err, ErrBlockNotFound)

	c = newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"no such block"}`))
	})
	_, err = c.GetBlockInfo(testutil.NewTestContext(t), protocol.NetworkMainnet, 7)
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

func TestRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"tipInfo":{"metadata":{"best_block_height":5}}}`))
	})

	got, err := c.GetBestBlock(testutil.NewTestContext(t), protocol.NetworkMainnet)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got)
	assert.Equal(t, int32(3), hits.Load())
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.GetBestBlock(testutil.NewTestContext(t), protocol.NetworkMainnet)
	assert.ErrorContains(t, err, "unexpected status 400")
	assert.Equal(t, int32(1), hits.Load())
}

func TestGetBestBlockNotFoundIsNotABlock(t *testing.T) {
	c := newTestExplorer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := c.GetBestBlock(testutil.NewTestContext(t), protocol.NetworkMainnet)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBlockNotFound)
	assert.ErrorContains(t, err, "not found")
}
