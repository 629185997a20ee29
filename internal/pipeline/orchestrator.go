package pipeline

import (
	"context"

	"github.com/yksirotta/credflow/pkg/domain"
)

// SignFunc applies the active scheme's authentication to one attempt.
type SignFunc func(ctx context.Context, req *domain.RequestDescriptor) error

// RecoverFunc prepares the single permitted retry after an auth failure:
// refreshing a token, answering a digest challenge. It reports false when no
// recovery applies to the observed response, in which case the failed
// response is the caller's result.
type RecoverFunc func(ctx context.Context, failed *domain.Response) (bool, error)

// Orchestrator runs the sign, send, recover-once, resend cycle. Remote
// services may treat repeated failed auth as brute-force signals, so a call
// never touches the transport more than twice.
type Orchestrator struct {
	transport domain.Transport
}

func NewOrchestrator(transport domain.Transport) *Orchestrator {
	return &Orchestrator{transport: transport}
}

// Execute issues the call, performing at most one authentication recovery.
// The original descriptor is cloned before each attempt so retries always
// start from the caller's intent. Statuses other than failureStatus are
// returned as-is; general HTTP error semantics belong to the caller.
func (o *Orchestrator) Execute(ctx context.Context, req *domain.RequestDescriptor, failureStatus int, sign SignFunc, recoverAuth RecoverFunc) (*domain.Response, error) {
	attempt := req.Clone()
	if err := sign(ctx, attempt); err != nil {
		return nil, err
	}

	resp, err := o.transport.Send(ctx, attempt)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != failureStatus || recoverAuth == nil {
		return resp, nil
	}

	recovered, err := recoverAuth(ctx, resp)
	if err != nil {
		return nil, err
	}
	if !recovered {
		return resp, nil
	}

	retry := req.Clone()
	if err := sign(ctx, retry); err != nil {
		return nil, err
	}

	retryResp, err := o.transport.Send(ctx, retry)
	if err != nil {
		return nil, err
	}

	if retryResp.StatusCode == failureStatus {
		return nil, &domain.AuthRetryExhaustedError{StatusCode: retryResp.StatusCode}
	}

	return retryResp, nil
}
