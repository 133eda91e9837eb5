package cart

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/api"
	"storefront/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepository is an in-memory backend cart.
type fakeRepository struct {
	mu     sync.Mutex
	lines  map[Key]Line
	prices map[string]int64
	calls  []string

	inflight    int32
	maxInflight int32
	delay       time.Duration

	getErr    error
	addErr    error
	updateErr error
	onGet     func(n int)
	gets      int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		lines:  map[Key]Line{},
		prices: map[string]int64{"v1": 150000, "v2": 99000},
	}
}

func (f *fakeRepository) enter(call string) func() {
	n := atomic.AddInt32(&f.inflight, 1)
	for {
		max := atomic.LoadInt32(&f.maxInflight)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxInflight, max, n) {
			break
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { atomic.AddInt32(&f.inflight, -1) }
}

func (f *fakeRepository) GetCart(ctx context.Context) ([]Line, error) {
	defer f.enter("get")()

	f.mu.Lock()
	f.gets++
	n := f.gets
	hook := f.onGet
	err := f.getErr
	out := make([]Line, 0, len(f.lines))
	for _, l := range f.lines {
		out = append(out, l)
	}
	f.mu.Unlock()

	// the hook runs after the snapshot is taken, like a slow response
	if hook != nil {
		hook(n)
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariantID+out[i].Size < out[j].VariantID+out[j].Size })
	return out, nil
}

func (f *fakeRepository) AddLine(ctx context.Context, key Key, quantity int) error {
	defer f.enter("add")()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	l := f.lines[key]
	l.VariantID, l.Size, l.Price = key.VariantID, key.Size, f.prices[key.VariantID]
	l.Quantity += quantity
	f.lines[key] = l
	return nil
}

func (f *fakeRepository) RemoveLine(ctx context.Context, key Key) error {
	defer f.enter("remove")()
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lines[key]; !ok {
		return &api.Error{Kind: api.ErrNotFound, Status: 404, Message: "item not in cart"}
	}
	delete(f.lines, key)
	return nil
}

func (f *fakeRepository) UpdateLine(ctx context.Context, key Key, quantity int) error {
	defer f.enter("update")()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	l, ok := f.lines[key]
	if !ok {
		return &api.Error{Kind: api.ErrNotFound, Status: 404}
	}
	l.Quantity = quantity
	f.lines[key] = l
	return nil
}

func (f *fakeRepository) ClearCart(ctx context.Context) error {
	defer f.enter("clear")()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = map[Key]Line{}
	return nil
}

func (f *fakeRepository) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRepository) serverCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.lines {
		n += l.Quantity
	}
	return n
}

type fakeIdentity struct {
	mu  sync.Mutex
	id  session.Identity
	gen int
}

func (f *fakeIdentity) Identity() session.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id
}

func (f *fakeIdentity) AnonymousID() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.id.AnonymousID == "" {
		f.gen++
		f.id.AnonymousID = "anon-generated"
	}
	return f.id.AnonymousID, nil
}

func (f *fakeIdentity) set(id session.Identity) {
	f.mu.Lock()
	f.id = id
	f.mu.Unlock()
}

func loggedIn(userID string) *fakeIdentity {
	return &fakeIdentity{id: session.Identity{
		State: session.StateAuthenticated,
		User:  &session.User{ID: userID},
	}}
}

func TestStore_Scenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyCart", func(t *testing.T) {
		s := NewStore(newFakeRepository(), loggedIn("u1"))

		require.NoError(t, s.Load(ctx))
		assert.True(t, s.Loaded())
		assert.Equal(t, 0, s.Count())
		assert.Equal(t, int64(0), s.TotalPrice())
		assert.True(t, s.IsEmpty())
	})

	t.Run("AddLineReloads", func(t *testing.T) {
		repo := newFakeRepository()
		s := NewStore(repo, loggedIn("u1"))

		require.NoError(t, s.AddLine(ctx, "v1", "9", 2))

		lines := s.Lines()
		require.Len(t, lines, 1)
		assert.Equal(t, 2, lines[0].Quantity)
		assert.Equal(t, 2, s.Count())
		assert.Equal(t, int64(300000), s.TotalPrice())
		assert.Equal(t, []string{"add", "get"}, repo.callLog())
	})

	t.Run("UpdateToZeroRemoves", func(t *testing.T) {
		repo := newFakeRepository()
		s := NewStore(repo, loggedIn("u1"))
		require.NoError(t, s.AddLine(ctx, "v1", "9", 2))

		require.NoError(t, s.UpdateQuantity(ctx, "v1", "9", 0))
		assert.Equal(t, 0, s.Count())
		assert.Empty(t, s.Lines())
	})
}

func TestStore_RemoveLine(t *testing.T) {
	ctx := context.Background()

	t.Run("AbsentLineIsNoop", func(t *testing.T) {
		repo := newFakeRepository()
		s := NewStore(repo, loggedIn("u1"))
		require.NoError(t, s.AddLine(ctx, "v2", "10", 1))
		before := s.Lines()

		require.NoError(t, s.RemoveLine(ctx, "v1", "9"))
		assert.Equal(t, before, s.Lines())
	})

	t.Run("UpdateZeroMatchesRemove", func(t *testing.T) {
		build := func() (*Store, *fakeRepository) {
			repo := newFakeRepository()
			s := NewStore(repo, loggedIn("u1"))
			require.NoError(t, s.AddLine(ctx, "v1", "9", 3))
			require.NoError(t, s.AddLine(ctx, "v2", "10", 1))
			return s, repo
		}

		a, _ := build()
		require.NoError(t, a.RemoveLine(ctx, "v1", "9"))

		b, _ := build()
		require.NoError(t, b.UpdateQuantity(ctx, "v1", "9", 0))

		assert.Equal(t, a.Lines(), b.Lines())
		assert.Equal(t, a.Count(), b.Count())
	})
}

func TestStore_CountMatchesServer(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	s := NewStore(repo, loggedIn("u1"))

	steps := []func() error{
		func() error { return s.AddLine(ctx, "v1", "9", 2) },
		func() error { return s.AddLine(ctx, "v2", "10", 1) },
		func() error { return s.UpdateQuantity(ctx, "v1", "9", 5) },
		func() error { return s.AddLine(ctx, "v1", "9", 1) },
		func() error { return s.RemoveLine(ctx, "v2", "10") },
		func() error { return s.RemoveLine(ctx, "v2", "10") },
		func() error { return s.UpdateQuantity(ctx, "v2", "11", -1) },
		func() error { return s.AddLine(ctx, "v2", "11", 4) },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		assert.Equal(t, repo.serverCount(), s.Count(), "step %d", i)
	}
	require.NoError(t, s.Load(ctx))
	assert.Equal(t, 10, s.Count())
	assert.Equal(t, int64(6*150000+4*99000), s.TotalPrice())
}

func TestStore_SerializesMutations(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	s := NewStore(repo, loggedIn("u1"))
	require.NoError(t, s.AddLine(ctx, "v1", "9", 1))

	repo.delay = 10 * time.Millisecond

	var wg sync.WaitGroup
	for _, qty := range []int{3, 7} {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			assert.NoError(t, s.UpdateQuantity(ctx, "v1", "9", q))
		}(qty)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&repo.maxInflight), "only one backend call at a time")

	// each update is followed by its own reload before the next update is sent
	calls := repo.callLog()[2:]
	assert.Equal(t, []string{"update", "get", "update", "get"}, calls)
	assert.Equal(t, repo.serverCount(), s.Count())
}

func TestStore_LoadFailureKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	s := NewStore(repo, loggedIn("u1"))
	require.NoError(t, s.AddLine(ctx, "v1", "9", 2))

	repo.getErr = &api.Error{Kind: api.ErrNetwork, Err: errors.New("timeout")}

	err := s.Load(ctx)
	assert.ErrorIs(t, err, api.ErrNetwork)
	assert.ErrorIs(t, s.Err(), api.ErrNetwork)
	assert.Equal(t, 2, s.Count(), "stale but available")

	repo.getErr = nil
	require.NoError(t, s.Load(ctx))
	assert.NoError(t, s.Err())
}

func TestStore_MutationFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("OutOfStock", func(t *testing.T) {
		repo := newFakeRepository()
		repo.addErr = &api.Error{Kind: api.ErrOutOfStock, Status: 409, Message: "only 1 left"}
		s := NewStore(repo, loggedIn("u1"))

		err := s.AddLine(ctx, "v1", "9", 5)
		assert.ErrorIs(t, err, api.ErrOutOfStock)
		assert.Equal(t, []string{"add"}, repo.callLog(), "no reload after a rejected mutation")
	})

	t.Run("Validation", func(t *testing.T) {
		repo := newFakeRepository()
		s := NewStore(repo, loggedIn("u1"))

		assert.ErrorIs(t, s.AddLine(ctx, "v1", "9", 0), ErrInvalidQuantity)
		assert.ErrorIs(t, s.AddLine(ctx, "", "9", 1), ErrVariantRequired)
		assert.ErrorIs(t, s.UpdateQuantity(ctx, "v1", " ", 1), ErrSizeRequired)
		assert.Empty(t, repo.callLog())
	})

	t.Run("LoginRequired", func(t *testing.T) {
		repo := newFakeRepository()
		s := NewStore(repo, &fakeIdentity{id: session.Identity{State: session.StateAnonymous}})

		err := s.AddLine(ctx, "v1", "9", 1)
		assert.ErrorIs(t, err, api.ErrNotAuthenticated)
		assert.Empty(t, repo.callLog())
	})
}

func TestStore_AnonymousCart(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	ids := &fakeIdentity{id: session.Identity{State: session.StateAnonymous}}
	s := NewStore(repo, ids, WithAnonymousCarts())

	require.NoError(t, s.Load(ctx))
	assert.Empty(t, repo.callLog(), "no owner yet, nothing to fetch")

	require.NoError(t, s.AddLine(ctx, "v1", "9", 1))
	assert.Equal(t, 1, ids.gen)
	assert.Equal(t, 1, s.Count())
}

func TestStore_AtomicUpdateFallback(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	s := NewStore(repo, loggedIn("u1"))
	require.NoError(t, s.AddLine(ctx, "v1", "9", 1))

	repo.updateErr = errUpdateUnsupported

	require.NoError(t, s.UpdateQuantity(ctx, "v1", "9", 4))
	assert.Equal(t, 4, s.Count())
	assert.Equal(t, []string{"add", "get", "update", "remove", "add", "get"}, repo.callLog())

	require.NoError(t, s.UpdateQuantity(ctx, "v1", "9", 2))
	assert.Equal(t, 2, s.Count())
	assert.Equal(t, []string{"remove", "add", "get"}, repo.callLog()[6:], "atomic update not retried")
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	s := NewStore(repo, loggedIn("u1"))
	require.NoError(t, s.AddLine(ctx, "v1", "9", 2))

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Count())
}

func TestStore_IdentityChanged(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	ids := loggedIn("u1")
	s := NewStore(repo, ids)
	require.NoError(t, s.AddLine(ctx, "v1", "9", 2))

	ids.set(session.Identity{State: session.StateAnonymous})
	s.IdentityChanged(ids.Identity())
	s.Wait()

	assert.Equal(t, 0, s.Count())
	assert.True(t, s.Loaded())
}

func TestStore_DiscardsLoadOfPreviousOwner(t *testing.T) {
	repo := newFakeRepository()
	repo.lines[Key{"v1", "9"}] = Line{VariantID: "v1", Size: "9", Quantity: 2, Price: 10}

	entered := make(chan struct{})
	release := make(chan struct{})
	releaseSecond := make(chan struct{})
	repo.onGet = func(n int) {
		switch n {
		case 1:
			close(entered)
			<-release
		case 2:
			<-releaseSecond
		}
	}

	ids := loggedIn("u1")
	s := NewStore(repo, ids)

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()
	<-entered

	// the owner changes while the first load is in flight
	ids.set(session.Identity{State: session.StateAuthenticated, User: &session.User{ID: "u2"}})
	repo.mu.Lock()
	repo.lines = map[Key]Line{{"v2", "10"}: {VariantID: "v2", Size: "10", Quantity: 5, Price: 10}}
	repo.mu.Unlock()
	s.IdentityChanged(ids.Identity())

	close(release)
	require.NoError(t, <-done)
	assert.Empty(t, s.Lines(), "u1's cart must not be applied for u2")
	assert.False(t, s.Loaded())

	close(releaseSecond)
	s.Wait()

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "v2", lines[0].VariantID)
}

func TestStore_StockWarning(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newFakeRepository(), loggedIn("u1"))
	require.NoError(t, s.AddLine(ctx, "v1", "9", 2))

	assert.NoError(t, s.StockWarning(Key{"v1", "9"}, 1, 3))
	assert.ErrorIs(t, s.StockWarning(Key{"v1", "9"}, 2, 3), api.ErrOutOfStock)
}

func TestStore_AddLineWithStock(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	s := NewStore(repo, loggedIn("u1"))
	require.NoError(t, s.AddLine(ctx, "v1", "9", 2))

	err := s.AddLineWithStock(ctx, "v1", "9", 2, 3)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 2, s.Count())

	require.NoError(t, s.AddLineWithStock(ctx, "v1", "9", 1, 3))
	assert.Equal(t, 3, s.Count())

	require.NoError(t, s.AddLineWithStock(ctx, "v2", "10", 5, -1))
	assert.Equal(t, 8, s.Count())
}
