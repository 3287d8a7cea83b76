package api

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lease-settlement/generic"
	"github.com/warp/lease-settlement/store/sqlite"
)

func TestSettlementService_ConcurrentSettlesOfOneContract(t *testing.T) {
	h, router := newTestServer(t)
	createPostpay(t, router)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.Settlement.Settle(context.Background(), "ct-postpay", 1, testNow, TriggerManual)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	runs, err := h.Store.GetSettlementRuns(context.Background(), "ct-postpay", 10)
	require.NoError(t, err)
	require.Len(t, runs, 5)
	for _, r := range runs {
		assert.Equal(t, sqlite.RunCompleted, r.Status)
	}
}

func TestSettlementService_UnknownContractRecordsNoRun(t *testing.T) {
	h, _ := newTestServer(t)

	_, err := h.Settlement.Settle(context.Background(), "missing", 1, testNow, TriggerManual)
	assert.ErrorIs(t, err, generic.ErrContractNotFound)

	runs, err := h.Store.GetSettlementRuns(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
