package chain

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"gallery-service/internal/metrics"
)

// RPCError is an error object returned by the node.
type RPCError struct {
	Method  string
	Code    int64
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: rpc error %d: %s", e.Method, e.Code, e.Message)
}

// Options configures a Client.
type Options struct {
	URL       string
	PackageID string
	Timeout   time.Duration
	// MaxRetries is the number of extra attempts after a transport failure or a 429/5xx.
	MaxRetries uint
	// RetryInterval is the first backoff interval. Zero keeps the backoff default.
	RetryInterval time.Duration
}

// Client is a JSON-RPC client for the chain node.
type Client struct {
	url           string
	packageID     string
	timeout       time.Duration
	maxTries      uint
	retryInterval time.Duration
	nextID        atomic.Int64
}

// NewClient creates a chain client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:           opts.URL,
		packageID:     opts.PackageID,
		timeout:       timeout,
		maxTries:      opts.MaxRetries + 1,
		retryInterval: opts.RetryInterval,
	}
}

// PackageID returns the gallery package the client targets.
func (c *Client) PackageID() string { return c.packageID }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// call performs one JSON-RPC request and returns its "result" member. Transport failures and
// 429/5xx responses are retried with exponential backoff; RPC errors are not.
func (c *Client) call(ctx context.Context, method string, params ...any) (gjson.Result, error) {
	if params == nil {
		params = []any{}
	}
	req := rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params}
	timings := metrics.TimingsFrom(ctx)

	op := func() (gjson.Result, error) {
		if err := ctx.Err(); err != nil {
			return gjson.Result{}, backoff.Permanent(err)
		}
		start := time.Now()
		code, body, errs := fiber.Post(c.url).JSON(req).Timeout(c.timeout).Bytes()
		elapsed := time.Since(start)
		timings.RecordChainCall(elapsed)

		status := "ok"
		defer func() {
			metrics.ChainCallLatency.WithLabelValues(method, status).Observe(float64(elapsed.Microseconds()) / 1000.0)
		}()

		if len(errs) > 0 {
			status = "transport"
			return gjson.Result{}, errors.Wrapf(errs[0], "%s transport error", method)
		}
		if code == fiber.StatusTooManyRequests || code >= fiber.StatusInternalServerError {
			status = "http_" + strconv.Itoa(code)
			return gjson.Result{}, fmt.Errorf("%s: http status %d", method, code)
		}
		if code != fiber.StatusOK {
			status = "http_" + strconv.Itoa(code)
			return gjson.Result{}, backoff.Permanent(fmt.Errorf("%s: http status %d", method, code))
		}
		if !gjson.ValidBytes(body) {
			status = "invalid"
			return gjson.Result{}, backoff.Permanent(fmt.Errorf("%s: invalid json response", method))
		}
		res := gjson.ParseBytes(body)
		if e := res.Get("error"); e.Exists() {
			status = "rpc_error"
			return gjson.Result{}, backoff.Permanent(&RPCError{
				Method:  method,
				Code:    e.Get("code").Int(),
				Message: e.Get("message").String(),
			})
		}
		return res.Get("result"), nil
	}

	b := backoff.NewExponentialBackOff()
	if c.retryInterval > 0 {
		b.InitialInterval = c.retryInterval
	}
	return backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxTries))
}
