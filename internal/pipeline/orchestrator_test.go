package pipeline

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/yksirotta/credflow/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedTransport struct {
	responses []*domain.Response
	err       error
	calls     int
	requests  []*domain.RequestDescriptor
}

func (t *scriptedTransport) Send(ctx context.Context, req *domain.RequestDescriptor) (*domain.Response, error) {
	t.calls++
	t.requests = append(t.requests, req)
	if t.err != nil {
		return nil, t.err
	}
	resp := t.responses[0]
	if len(t.responses) > 1 {
		t.responses = t.responses[1:]
	}
	return resp, nil
}

func noopSign(ctx context.Context, req *domain.RequestDescriptor) error { return nil }

func TestOrchestrator_SuccessSkipsRecovery(t *testing.T) {
	transport := &scriptedTransport{responses: []*domain.Response{{StatusCode: 200}}}
	recoveries := 0

	resp, err := NewOrchestrator(transport).Execute(context.Background(),
		&domain.RequestDescriptor{Method: "GET", URL: "https://api.example.com"}, 401, noopSign,
		func(ctx context.Context, failed *domain.Response) (bool, error) {
			recoveries++
			return true, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, transport.calls)
	assert.Equal(t, 0, recoveries)
}

func TestOrchestrator_AtMostTwoTransportCalls(t *testing.T) {
	// A stub that returns 401 forever must still only be called twice.
	transport := &scriptedTransport{responses: []*domain.Response{{StatusCode: 401}}}

	_, err := NewOrchestrator(transport).Execute(context.Background(),
		&domain.RequestDescriptor{Method: "GET", URL: "https://api.example.com"}, 401, noopSign,
		func(ctx context.Context, failed *domain.Response) (bool, error) { return true, nil })

	var exhausted *domain.AuthRetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 401, exhausted.StatusCode)
	assert.Equal(t, 2, transport.calls)
}

func TestOrchestrator_NoRecoveryReturnsFailureAsIs(t *testing.T) {
	transport := &scriptedTransport{responses: []*domain.Response{{StatusCode: 401}}}

	resp, err := NewOrchestrator(transport).Execute(context.Background(),
		&domain.RequestDescriptor{Method: "GET", URL: "https://api.example.com"}, 401, noopSign, nil)

	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
	assert.Equal(t, 1, transport.calls)
}

func TestOrchestrator_RecoveryDeclinesReturnsFailureAsIs(t *testing.T) {
	transport := &scriptedTransport{responses: []*domain.Response{{StatusCode: 401}}}

	resp, err := NewOrchestrator(transport).Execute(context.Background(),
		&domain.RequestDescriptor{Method: "GET", URL: "https://api.example.com"}, 401, noopSign,
		func(ctx context.Context, failed *domain.Response) (bool, error) { return false, nil })

	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
	assert.Equal(t, 1, transport.calls)
}

func TestOrchestrator_NonAuthStatusesPassThrough(t *testing.T) {
	for _, status := range []int{400, 403, 404, 429, 500, 503} {
		transport := &scriptedTransport{responses: []*domain.Response{{StatusCode: status}}}

		resp, err := NewOrchestrator(transport).Execute(context.Background(),
			&domain.RequestDescriptor{Method: "GET", URL: "https://api.example.com"}, 401, noopSign,
			func(ctx context.Context, failed *domain.Response) (bool, error) { return true, nil })

		require.NoError(t, err)
		assert.Equal(t, status, resp.StatusCode)
		assert.Equal(t, 1, transport.calls)
	}
}

func TestOrchestrator_ConfigurableFailureStatus(t *testing.T) {
	// Some providers signal token expiry with a non-401 status.
	transport := &scriptedTransport{responses: []*domain.Response{{StatusCode: 403}, {StatusCode: 200}}}
	recoveries := 0

	resp, err := NewOrchestrator(transport).Execute(context.Background(),
		&domain.RequestDescriptor{Method: "GET", URL: "https://api.example.com"}, 403, noopSign,
		func(ctx context.Context, failed *domain.Response) (bool, error) {
			recoveries++
			return true, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, recoveries)
	assert.Equal(t, 2, transport.calls)
}

func TestOrchestrator_TransportErrorPropagates(t *testing.T) {
	transportErr := errors.New("connection refused")
	transport := &scriptedTransport{err: transportErr}

	_, err := NewOrchestrator(transport).Execute(context.Background(),
		&domain.RequestDescriptor{Method: "GET", URL: "https://api.example.com"}, 401, noopSign, nil)

	assert.ErrorIs(t, err, transportErr)
}

func TestOrchestrator_ClonesRequestPerAttempt(t *testing.T) {
	transport := &scriptedTransport{responses: []*domain.Response{{StatusCode: 401}, {StatusCode: 200}}}

	original := &domain.RequestDescriptor{Method: "GET", URL: "https://api.example.com"}
	sign := func(ctx context.Context, req *domain.RequestDescriptor) error {
		req.SetHeader("Authorization", "Bearer token")
		return nil
	}

	_, err := NewOrchestrator(transport).Execute(context.Background(), original, 401, sign,
		func(ctx context.Context, failed *domain.Response) (bool, error) { return true, nil })

	require.NoError(t, err)
	assert.Nil(t, original.Headers, "signing must not leak into the caller's descriptor")
	require.Len(t, transport.requests, 2)
	assert.NotSame(t, transport.requests[0], transport.requests[1])
	assert.Equal(t, http.Header{"Authorization": {"Bearer token"}}, transport.requests[1].Headers)
}
