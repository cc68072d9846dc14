package http_client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/logging"
)

// InstrumentedClient 一个具名出站 HTTP client: 基址 + 默认头 + 可选重试,
// 每个请求记一条延迟日志。网关 client 必须关着重试跑, 重试归批量引擎管。
type InstrumentedClient struct {
	Name           string
	BaseURL        string
	DefaultHeaders map[string]string
	Client         *http.Client
	Retry          *RetryConfig
	Underlying     *http.Transport
}

// StatusError 状态码 >= 400 时返回, 调用方按码分支 (用户查询把 404 当确定答案)。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http error status=%d body=%s", e.StatusCode, e.Body)
}

func (ic *InstrumentedClient) Do(ctx context.Context, method, path string, query map[string]string, headers map[string]string, body interface{}, out interface{}) (*http.Response, error) {
	if method == "" {
		method = http.MethodGet
	}
	req, err := ic.newRequest(ctx, method, path, query, headers, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := ic.sendWithRetry(ctx, req)
	ic.logRequest(ctx, req, time.Since(start), resp, err)
	if err != nil {
		return resp, err
	}
	return resp, consume(resp, out)
}

func (ic *InstrumentedClient) Get(ctx context.Context, path string, query map[string]string, headers map[string]string, out interface{}) (*http.Response, error) {
	return ic.Do(ctx, http.MethodGet, path, query, headers, nil, out)
}

func (ic *InstrumentedClient) Post(ctx context.Context, path string, body interface{}, headers map[string]string, out interface{}) (*http.Response, error) {
	return ic.Do(ctx, http.MethodPost, path, nil, headers, body, out)
}

func (ic *InstrumentedClient) newRequest(ctx context.Context, method, path string, query, headers map[string]string, body interface{}) (*http.Request, error) {
	target, err := ic.resolveURL(path, query)
	if err != nil {
		return nil, err
	}
	reqBody, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, err
	}
	for k, v := range ic.DefaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json, */*")
	}
	return req, nil
}

// resolveURL 绝对地址直接用, 相对路径拼到 BaseURL 后面。path 里已转义的
// 片段原样保留, 调用方负责 PathEscape。
func (ic *InstrumentedClient) resolveURL(path string, query map[string]string) (string, error) {
	full := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		joined, err := url.JoinPath(ic.BaseURL, path)
		if err != nil {
			return "", err
		}
		full = joined
	}
	if len(query) == 0 {
		return full, nil
	}
	u, err := url.Parse(full)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// encodeBody 把 body 参数折成 reader。reader/字节串/字符串原样过, 其余按 JSON 编。
func encodeBody(body interface{}) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case io.Reader:
		return b, "", nil
	case []byte:
		return bytes.NewReader(b), "", nil
	case string:
		return strings.NewReader(b), "", nil
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("marshal body: %w", err)
		}
		return bytes.NewReader(buf), "application/json", nil
	}
}

// consume 读掉并关闭响应体。4xx/5xx 折成 StatusError; JSON 响应按 Content-Type
// 解码, 其余只认 *[]byte 和 *string 两种落点, 别的类型不动。
func consume(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(slurp))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	switch o := out.(type) {
	case *[]byte:
		*o = raw
	case *string:
		*o = string(raw)
	}
	return nil
}

func (ic *InstrumentedClient) logRequest(ctx context.Context, req *http.Request, latency time.Duration, resp *http.Response, err error) {
	fields := []zap.Field{
		zap.String("client", ic.Name),
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Duration("latency", latency),
	}
	if err != nil {
		logging.Error(ctx, "http_client_request", append(fields, zap.Error(err))...)
		return
	}
	logging.Info(ctx, "http_client_request", append(fields, zap.Int("status", resp.StatusCode))...)
}

// sendWithRetry 瞬时错误和 5xx 在 attempt 预算内重发。非超时的网络错误
// (拒连, DNS 解析失败) 不重试; 倒不了带的请求体 (裸 io.Reader) 只发一次。
func (ic *InstrumentedClient) sendWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ic.Retry == nil || !ic.Retry.Enabled || ic.Retry.MaxAttempts <= 1 {
		return ic.Client.Do(req)
	}

	ladder := backoff.NewExponentialBackOff()
	ladder.InitialInterval = ic.Retry.InitialBackoff
	ladder.MaxInterval = ic.Retry.MaxBackoff
	ladder.Multiplier = ic.Retry.BackoffMultiplier
	ladder.RandomizationFactor = 0
	ladder.Reset()

	var lastErr error
	for attempt := 1; ; attempt++ {
		resp, err := ic.Client.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if err == nil {
			lastErr = fmt.Errorf("server error %d", resp.StatusCode)
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
		} else {
			lastErr = err
			var nErr net.Error
			if errors.As(err, &nErr) && !nErr.Timeout() {
				break
			}
		}
		if attempt >= ic.Retry.MaxAttempts || !rewind(req) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(ladder.NextBackOff()):
		}
	}
	return nil, lastErr
}

// rewind 重发前把请求体倒回开头。
func rewind(req *http.Request) bool {
	if req.Body == nil {
		return true
	}
	if req.GetBody == nil {
		return false
	}
	fresh, err := req.GetBody()
	if err != nil {
		return false
	}
	req.Body = fresh
	return true
}
