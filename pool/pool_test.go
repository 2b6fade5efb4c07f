package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klappe-pm/lattice-orchestrator/providers"
	"github.com/klappe-pm/lattice-orchestrator/types"
)

type fakeClient struct {
	closed bool
}

func (f *fakeClient) ValidateConfig() error { return nil }
func (f *fakeClient) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeClient) ChatCompletion(ctx context.Context, req types.APIRequest) (types.APIResponse, error) {
	return types.APIResponse{}, nil
}
func (f *fakeClient) Close() error { f.closed = true; return nil }

func TestGetConstructsLazilyOnFirstCall(t *testing.T) {
	var constructed int32
	p := New()
	p.Register(types.ProviderOpenAI, true, func() (providers.Client, error) {
		atomic.AddInt32(&constructed, 1)
		return &fakeClient{}, nil
	})

	c1, err := p.Get(types.ProviderOpenAI)
	require.NoError(t, err)
	c2, err := p.Get(types.ProviderOpenAI)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.EqualValues(t, 1, constructed)
}

func TestGetFailsFastWhenUnavailable(t *testing.T) {
	p := New()
	p.Register(types.ProviderAnthropic, false, func() (providers.Client, error) {
		return &fakeClient{}, nil
	})
	_, err := p.Get(types.ProviderAnthropic)
	assert.Error(t, err)
}

func TestGetConcurrentCallsShareOneInstance(t *testing.T) {
	var constructed int32
	p := New()
	p.Register(types.ProviderGoogle, true, func() (providers.Client, error) {
		atomic.AddInt32(&constructed, 1)
		return &fakeClient{}, nil
	})

	var wg sync.WaitGroup
	results := make([]providers.Client, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			c, err := p.Get(types.ProviderGoogle)
			require.NoError(t, err)
			results[idx] = c
		}(i)
	}
	wg.Wait()

	for _, c := range results {
		assert.Same(t, results[0], c)
	}
	assert.EqualValues(t, 1, constructed)
}

func TestShutdownClosesClientsAndRefusesFurtherGet(t *testing.T) {
	p := New()
	client := &fakeClient{}
	p.Register(types.ProviderOpenAI, true, func() (providers.Client, error) { return client, nil })

	_, err := p.Get(types.ProviderOpenAI)
	require.NoError(t, err)

	require.NoError(t, p.Shutdown())
	assert.True(t, client.closed)

	_, err = p.Get(types.ProviderOpenAI)
	assert.Error(t, err)
}
