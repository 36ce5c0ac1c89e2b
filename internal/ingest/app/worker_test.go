package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"video_ingest_service/internal/ingest/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeDelivery struct {
	acked int
}

func (d *fakeDelivery) Ack(bool) error {
	d.acked++
	return nil
}

// MockIngestUseCase 只實作 worker 會用到的 RetryDelete
type MockIngestUseCase struct {
	IngestUseCase
	mock.Mock
}

func (m *MockIngestUseCase) RetryDelete(ctx context.Context, job domain.ReconcileJob) (*domain.DeleteVideoRes, error) {
	args := m.Called(ctx, job)
	res, _ := args.Get(0).(*domain.DeleteVideoRes)
	return res, args.Error(1)
}

func TestReconcileWorker_Handle(t *testing.T) {
	job := domain.ReconcileJob{VideoID: 9, OwnerID: "u1", PublicIDs: []string{"a"}, Attempt: 2}
	body, err := json.Marshal(job)
	require.NoError(t, err)

	uc := new(MockIngestUseCase)
	uc.On("RetryDelete", mock.Anything, job).
		Return(&domain.DeleteVideoRes{FailedIDs: []string{"a"}}, &domain.ReconciliationError{FailedIDs: []string{"a"}}).Once()

	d := &fakeDelivery{}
	NewReconcileWorker(uc, nil, 0).Handle(context.Background(), body, d)

	assert.Equal(t, 1, d.acked)
	uc.AssertExpectations(t)
}

func TestReconcileWorker_DropsBadMessage(t *testing.T) {
	uc := new(MockIngestUseCase)
	d := &fakeDelivery{}

	NewReconcileWorker(uc, nil, 0).Handle(context.Background(), []byte("{"), d)

	assert.Equal(t, 1, d.acked)
	uc.AssertNotCalled(t, "RetryDelete", mock.Anything, mock.Anything)
}

func TestReconcileWorker_RequeuesOnTransientError(t *testing.T) {
	job := domain.ReconcileJob{VideoID: 9, OwnerID: "u1", PublicIDs: []string{"trip-abcd1234-part-002"}, Attempt: 2}
	body, err := json.Marshal(job)
	require.NoError(t, err)

	uc := new(MockIngestUseCase)
	uc.On("RetryDelete", mock.Anything, job).Return(nil, errors.New("connection reset by peer")).Once()
	queue := new(MockReconcileQueue)
	next := job
	next.Attempt = 3
	queue.On("Enqueue", mock.Anything, next).Return(nil).Once()

	d := &fakeDelivery{}
	NewReconcileWorker(uc, queue, 5).Handle(context.Background(), body, d)

	assert.Equal(t, 1, d.acked)
	queue.AssertExpectations(t)
}

func TestReconcileWorker_NoRequeue(t *testing.T) {
	cases := map[string]struct {
		attempt int
		err     error
	}{
		"attempts exhausted": {attempt: 5, err: errors.New("connection reset by peer")},
		"record gone":        {attempt: 1, err: domain.ErrNotFound},
		"foreign ids":        {attempt: 1, err: domain.ErrInvalidInput},
		"still partial":      {attempt: 1, err: &domain.ReconciliationError{FailedIDs: []string{"a"}}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			job := domain.ReconcileJob{VideoID: 9, OwnerID: "u1", PublicIDs: []string{"a"}, Attempt: tc.attempt}
			body, err := json.Marshal(job)
			require.NoError(t, err)

			uc := new(MockIngestUseCase)
			uc.On("RetryDelete", mock.Anything, job).Return(nil, tc.err).Once()
			queue := new(MockReconcileQueue)

			d := &fakeDelivery{}
			NewReconcileWorker(uc, queue, 5).Handle(context.Background(), body, d)

			assert.Equal(t, 1, d.acked)
			queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
		})
	}
}
