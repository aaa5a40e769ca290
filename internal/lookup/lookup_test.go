package lookup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/cache"
	"github.com/dharmasatrya/storefront/internal/models"
)

type fakeBackend struct {
	mu      sync.Mutex
	calls   int32
	gates   map[string]chan struct{}
	answers map[string][]models.Place
	err     error
	ignore  bool // keep answering after cancellation, like a transport that cannot abort
}

func (f *fakeBackend) Locations(ctx context.Context, q string) ([]models.Place, error) {
	atomic.AddInt32(&f.calls, 1)

	f.mu.Lock()
	gate := f.gates[q]
	f.mu.Unlock()

	if gate != nil {
		if f.ignore {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.answers[q], nil
}

func TestLookup_EmptyQueryShortCircuits(t *testing.T) {
	backend := &fakeBackend{}
	c := NewClient(backend, nil, 0, zap.NewNop())

	places, ok := c.Lookup(context.Background(), "   ")

	assert.True(t, ok)
	assert.Empty(t, places)
	assert.NotNil(t, places)
	assert.Equal(t, int32(0), atomic.LoadInt32(&backend.calls))
}

func TestLookup_FailureYieldsEmpty(t *testing.T) {
	backend := &fakeBackend{err: errors.New("connection refused")}
	c := NewClient(backend, nil, 0, zap.NewNop())

	places, ok := c.Lookup(context.Background(), "bari")

	assert.True(t, ok)
	assert.Empty(t, places)
}

func TestLookup_AppliesResults(t *testing.T) {
	backend := &fakeBackend{answers: map[string][]models.Place{
		"bari": {{Code: "BRC", Name: "Bariloche"}},
	}}
	c := NewClient(backend, nil, 0, zap.NewNop())

	places, ok := c.Lookup(context.Background(), " bari ")
	require.True(t, ok)
	assert.Equal(t, "Bariloche (BRC)", places[0].Label())

	q, current := c.Results()
	assert.Equal(t, "bari", q)
	assert.Equal(t, places, current)
}

func TestLookup_SupersededResponseIsDiscarded(t *testing.T) {
	for _, ignore := range []bool{false, true} {
		name := "transport honours cancellation"
		if ignore {
			name = "transport ignores cancellation"
		}
		t.Run(name, func(t *testing.T) {
			slow := make(chan struct{})
			backend := &fakeBackend{
				ignore: ignore,
				gates:  map[string]chan struct{}{"ba": slow},
				answers: map[string][]models.Place{
					"ba":  {{Code: "BUE", Name: "Buenos Aires"}},
					"bar": {{Code: "BRC", Name: "Bariloche"}},
				},
			}
			c := NewClient(backend, nil, 0, zap.NewNop())

			type result struct {
				places []models.Place
				ok     bool
			}
			first := make(chan result, 1)
			go func() {
				p, ok := c.Lookup(context.Background(), "ba")
				first <- result{p, ok}
			}()
			require.Eventually(t, func() bool { return atomic.LoadInt32(&backend.calls) == 1 }, time.Second, time.Millisecond)

			places, ok := c.Lookup(context.Background(), "bar")
			require.True(t, ok)
			assert.Equal(t, "BRC", places[0].Code)

			close(slow)
			r := <-first
			assert.False(t, r.ok)
			assert.Nil(t, r.places)

			q, current := c.Results()
			assert.Equal(t, "bar", q)
			assert.Equal(t, "BRC", current[0].Code)
		})
	}
}

func TestLookup_UsesCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	backend := &fakeBackend{answers: map[string][]models.Place{
		"salta": {{Code: "SLA", Name: "Salta"}},
	}}
	rc := cache.NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	c := NewClient(backend, rc, 0, zap.NewNop())

	_, _ = c.Lookup(context.Background(), "salta")
	places, ok := c.Lookup(context.Background(), "Salta")

	require.True(t, ok)
	assert.Equal(t, "SLA", places[0].Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.calls))
}

func TestSuggest_DeliversOnlyLastKeystroke(t *testing.T) {
	backend := &fakeBackend{answers: map[string][]models.Place{
		"mendoza": {{Code: "MDZ", Name: "Mendoza"}},
	}}
	c := NewClient(backend, nil, 20*time.Millisecond, zap.NewNop())
	t.Cleanup(c.Close)

	delivered := make(chan string, 8)
	for _, q := range []string{"m", "me", "men", "mendoza"} {
		c.Suggest(q, time.Second, func(query string, places []models.Place) {
			delivered <- query
		})
	}

	select {
	case q := <-delivered:
		assert.Equal(t, "mendoza", q)
	case <-time.After(time.Second):
		t.Fatal("no suggestion delivered")
	}
	time.Sleep(40 * time.Millisecond)
	assert.Len(t, delivered, 0)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.calls))
}
