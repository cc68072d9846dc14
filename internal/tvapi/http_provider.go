package tvapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/grand-thief-cash/tvaccess/internal/application/components/http_client"
)

// HTTPProvider speaks the access-gateway JSON contract over an instrumented
// client. The client's retry must stay disabled for this provider: retrying
// lives in the bulk engine, which tells failure classes apart.
type HTTPProvider struct {
	client         *http_client.InstrumentedClient
	accessPath     string
	userPathPrefix string
}

func NewHTTPProvider(client *http_client.InstrumentedClient, accessPath, userPathPrefix string) *HTTPProvider {
	if accessPath == "" {
		accessPath = "/api/access"
	}
	if userPathPrefix == "" {
		userPathPrefix = "/api/users/"
	}
	return &HTTPProvider{
		client:         client,
		accessPath:     accessPath,
		userPathPrefix: userPathPrefix,
	}
}

type accessRequest struct {
	Username string `json:"username"`
	PineID   string `json:"pine_id"`
	Duration string `json:"duration"`
}

type accessResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

type userResponse struct {
	Exists bool `json:"exists"`
}

func (p *HTTPProvider) PerformOperation(ctx context.Context, subject, target, durationSpec string) (OperationResult, error) {
	req := accessRequest{Username: subject, PineID: target, Duration: durationSpec}
	var out accessResponse
	if _, err := p.client.Post(ctx, p.accessPath, req, nil, &out); err != nil {
		return OperationResult{}, fmt.Errorf("tvapi: access call for %s/%s: %w", subject, target, err)
	}
	st, err := ParseStatus(out.Status)
	if err != nil {
		return OperationResult{}, err
	}
	return OperationResult{Status: st, Detail: out.Detail}, nil
}

func (p *HTTPProvider) SubjectExists(ctx context.Context, subject string) (bool, error) {
	var out userResponse
	_, err := p.client.Get(ctx, p.userPathPrefix+url.PathEscape(subject), nil, nil, &out)
	if err != nil {
		// 404 是明确的"用户不存在"，不算查询失败。
		var se *http_client.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("tvapi: user lookup for %s: %w", subject, err)
	}
	return out.Exists, nil
}
