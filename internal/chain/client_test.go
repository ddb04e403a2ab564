package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcCall struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// rpcServer answers each JSON-RPC method with a canned "result" body.
func rpcServer(t *testing.T, handle func(call rpcCall) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		code, body := handle(call)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string) *Client {
	return NewClient(Options{URL: url, PackageID: "0xpkg", Timeout: time.Second, MaxRetries: 2, RetryInterval: time.Millisecond})
}

func TestGetSceneConfigJSON(t *testing.T) {
	srv := rpcServer(t, func(call rpcCall) (int, string) {
		assert.Equal(t, "suix_getDynamicFieldObject", call.Method)
		var kiosk string
		assert.NoError(t, json.Unmarshal(call.Params[0], &kiosk))
		if kiosk == "0xempty" {
			return 200, `{"jsonrpc":"2.0","id":1,"result":{"error":{"code":"dynamicFieldNotFound","parent_object_id":"0xempty"}}}`
		}
		assert.Contains(t, string(call.Params[1]), `"0xpkg::gallery::SceneConfigKey"`)
		return 200, `{"jsonrpc":"2.0","id":1,"result":{"data":{"content":{"fields":{"value":"{\"o\":[]}"}}}}}`
	})
	c := newTestClient(srv.URL)

	raw, ok, err := c.GetSceneConfigJSON(context.Background(), "0xk")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"o":[]}`, raw)

	raw, ok, err = c.GetSceneConfigJSON(context.Background(), "0xempty")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, raw)
}

func TestCallRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := rpcServer(t, func(call rpcCall) (int, string) {
		if attempts.Add(1) < 3 {
			return 503, `unavailable`
		}
		return 200, `{"jsonrpc":"2.0","id":1,"result":{"data":{"content":{"fields":{"value":"x"}}}}}`
	})
	c := newTestClient(srv.URL)

	raw, ok, err := c.GetSceneConfigJSON(context.Background(), "0xk")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", raw)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestCallGivesUpAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := rpcServer(t, func(call rpcCall) (int, string) {
		attempts.Add(1)
		return 502, `bad gateway`
	})
	c := newTestClient(srv.URL)

	_, _, err := c.GetSceneConfigJSON(context.Background(), "0xk")
	require.Error(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestCallDoesNotRetryRPCErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := rpcServer(t, func(call rpcCall) (int, string) {
		attempts.Add(1)
		return 200, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`
	})
	c := newTestClient(srv.URL)

	_, _, err := c.GetSceneConfigJSON(context.Background(), "0xk")
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(-32602), rpcErr.Code)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestGetKioskItems(t *testing.T) {
	srv := rpcServer(t, func(call rpcCall) (int, string) {
		switch call.Method {
		case "suix_getDynamicFields":
			if string(call.Params[1]) == "null" {
				return 200, `{"result":{"data":[
					{"name":{"type":"0x2::kiosk::Item","value":{"id":"0xa"}},"objectId":"0xfa"},
					{"name":{"type":"0x2::kiosk::Listing","value":{"id":"0xa","is_exclusive":false}},"objectId":"0xla"}
				],"nextCursor":"0xfa","hasNextPage":true}}`
			}
			return 200, `{"result":{"data":[
				{"name":{"type":"0x2::kiosk::Item","value":{"id":"0xb"}},"objectId":"0xfb"},
				{"name":{"type":"0x2::kiosk::Lock","value":{"id":"0xb"}},"objectId":"0xlk"}
			],"nextCursor":null,"hasNextPage":false}}`
		case "sui_multiGetObjects":
			if string(call.Params[0]) == `["0xla"]` {
				return 200, `{"result":[{"data":{"objectId":"0xla","content":{"fields":{"value":"2500000000"}}}}]}`
			}
			return 200, `{"result":[
				{"data":{"objectId":"0xa","type":"0x9::art::Statue","display":{"data":{"name":"Bust","image_url":"https://x/a.png"}},"content":{"fields":{"blob_id":"b1"}}}},
				{"data":{"objectId":"0xb","type":"0x9::art::Frame","display":{"data":null},"content":{"fields":{"level":3}}}}
			]}`
		}
		t.Errorf("unexpected method %s", call.Method)
		return 500, ""
	})
	c := newTestClient(srv.URL)

	items, err := c.GetKioskItems(context.Background(), "0xk")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "0xa", items[0].ObjectID)
	assert.Equal(t, "0x9::art::Statue", items[0].Type)
	assert.Equal(t, "Bust", items[0].Display["name"])
	assert.Equal(t, "b1", items[0].Content["blob_id"])
	assert.True(t, items[0].IsListed)
	require.NotNil(t, items[0].Price)
	assert.Equal(t, uint64(2500000000), *items[0].Price)

	assert.Equal(t, "0xb", items[1].ObjectID)
	assert.Nil(t, items[1].Display)
	assert.Equal(t, float64(3), items[1].Content["level"])
	assert.False(t, items[1].IsListed)
	assert.Nil(t, items[1].Price)
}

func TestDevInspectObjectProperties(t *testing.T) {
	srv := rpcServer(t, func(call rpcCall) (int, string) {
		switch call.Method {
		case "sui_getObject":
			return 200, `{"result":{"data":{"objectId":"0xk","owner":{"Shared":{"initial_shared_version":42}}}}}`
		case "sui_devInspectTransactionBlock":
			var encoded string
			assert.NoError(t, json.Unmarshal(call.Params[1], &encoded))
			kind, err := base64.StdEncoding.DecodeString(encoded)
			assert.NoError(t, err)
			want, err := EncodeInspectCall("0xpkg", GalleryModule, FnGetObjectProperties, "0xk", 42, "0xabc")
			assert.NoError(t, err)
			assert.Equal(t, want, kind)
			return 200, `{"result":{"effects":{},"results":[{"returnValues":[[[1,0,3],"0x1::option::Option<Props>"]]}]}}`
		}
		return 500, ""
	})
	c := newTestClient(srv.URL)

	out, err := c.DevInspectObjectProperties(context.Background(), "0xk", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 3}, out)
}

func TestDevInspectMissingKiosk(t *testing.T) {
	srv := rpcServer(t, func(call rpcCall) (int, string) {
		return 200, `{"result":{"error":{"code":"notExists","object_id":"0xk"}}}`
	})
	c := newTestClient(srv.URL)

	_, err := c.DevInspectObjectProperties(context.Background(), "0xk", "0xabc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCallHonoursCancelledContext(t *testing.T) {
	var attempts atomic.Int32
	srv := rpcServer(t, func(call rpcCall) (int, string) {
		attempts.Add(1)
		return 200, `{"result":{}}`
	})
	c := newTestClient(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.GetSceneConfigJSON(ctx, "0xk")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), attempts.Load())
}
