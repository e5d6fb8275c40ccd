package cart

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *mockPublisher) Publish(_ context.Context, ev events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) types() []events.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []events.Type
	for _, ev := range m.events {
		out = append(out, ev.Type)
	}
	return out
}

// blockingPublisher holds every Publish until release is closed.
type blockingPublisher struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingPublisher) Publish(context.Context, events.Event) error {
	b.entered <- struct{}{}
	<-b.release
	return nil
}

func (b *blockingPublisher) Close() error { return nil }

// flakyStore fails Set for one key.
type flakyStore struct {
	*store.MemoryStore
	failKey string
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if key == f.failKey {
		return errors.New("quota exceeded")
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func price(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestStore_Totals(t *testing.T) {
	ctx := context.Background()
	sut := NewStore(ctx, store.NewMemoryStore())

	assert.True(t, sut.Snapshot().Total.IsZero())
	assert.True(t, sut.Snapshot().IsEmpty())

	snap, err := sut.AddItem(ctx, domain.Product{ID: "a", Price: price(500), CountInStock: 3}, 1, "", "")
	require.NoError(t, err)
	assert.True(t, snap.Total.Equal(price(500)))

	_, err = sut.Clear(ctx)
	require.NoError(t, err)
	_, err = sut.AddItem(ctx, domain.Product{ID: "a", Price: price(300), CountInStock: 3}, 2, "", "")
	require.NoError(t, err)
	snap, err = sut.AddItem(ctx, domain.Product{ID: "b", Price: price(750), CountInStock: 3}, 1, "", "")
	require.NoError(t, err)

	assert.True(t, snap.Total.Equal(price(1350)), snap.Total.String())
	assert.Equal(t, 3, snap.ItemCount)
}

func TestStore_PersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	first, err := store.NewSQLStore("sqlite", path, "device")
	require.NoError(t, err)
	sut := NewStore(ctx, first)

	addr := domain.ShippingAddressDraft{
		Name: "Asha Rao", Email: "asha@example.com", Phone: "9876543210", HouseNumber: "12B",
		FlatOrSociety: "Lotus Heights", Street: "MG Road", City: "Pune", State: "MH",
		PostalCode: "411001", Landmark: "Near park",
	}
	_, err = sut.AddItem(ctx, tee(), 2, "M", "white")
	require.NoError(t, err)
	_, err = sut.AddItem(ctx, mug(), 1, "", "")
	require.NoError(t, err)
	want, err := sut.SaveShippingAddress(ctx, addr)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := store.NewSQLStore("sqlite", path, "device")
	require.NoError(t, err)
	defer second.Close()
	got := NewStore(ctx, second).Snapshot()

	assert.Equal(t, want.Address, got.Address)
	require.Len(t, got.Items, len(want.Items))
	for i := range want.Items {
		w, g := want.Items[i], got.Items[i]
		assert.True(t, w.UnitPrice.Equal(g.UnitPrice))
		w.UnitPrice, g.UnitPrice = decimal.Zero, decimal.Zero
		assert.Equal(t, w, g)
	}
	assert.True(t, want.Total.Equal(got.Total))
}

func TestStore_LoadToleratesMalformedData(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	require.NoError(t, mem.Set(ctx, store.KeyCartItems, []byte(`{not json`)))
	require.NoError(t, mem.Set(ctx, store.KeyShippingAddress, []byte(`42`)))

	snap := NewStore(ctx, mem).Snapshot()

	assert.Empty(t, snap.Items)
	assert.True(t, snap.Address.IsZero())
}

func TestStore_LoadDropsInvalidLines(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	require.NoError(t, mem.Set(ctx, store.KeyCartItems, []byte(`[
		{"product":"ok","price":100,"countInStock":2,"qty":2},
		{"product":"zero","price":100,"countInStock":2,"qty":0},
		{"product":"over","price":100,"countInStock":2,"qty":3},
		{"product":"","price":100,"countInStock":2,"qty":1}
	]`)))

	snap := NewStore(ctx, mem).Snapshot()

	require.Len(t, snap.Items, 1)
	assert.Equal(t, "ok", snap.Items[0].ProductID)
}

func TestStore_EveryMutationPersists(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	sut := NewStore(ctx, mem)

	_, err := sut.AddItem(ctx, mug(), 2, "", "")
	require.NoError(t, err)

	var items []domain.CartLineItem
	require.NoError(t, store.LoadJSON(ctx, mem, store.KeyCartItems, &items))
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	_, err = sut.Clear(ctx)
	require.NoError(t, err)
	raw, err := mem.Get(ctx, store.KeyCartItems)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestStore_RejectedCommandChangesNothing(t *testing.T) {
	ctx := context.Background()
	sut := NewStore(ctx, store.NewMemoryStore())
	before, err := sut.AddItem(ctx, mug(), 1, "", "")
	require.NoError(t, err)

	_, err = sut.AddItem(ctx, tee(), 1, "", "black")

	assert.ErrorIs(t, err, ErrSizeRequired)
	assert.Equal(t, before.Items, sut.Snapshot().Items)
}

func TestStore_PersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{MemoryStore: store.NewMemoryStore()}
	sut := NewStore(ctx, flaky)
	_, err := sut.AddItem(ctx, mug(), 1, "", "")
	require.NoError(t, err)

	flaky.failKey = store.KeyShippingAddress
	_, err = sut.AddItem(ctx, domain.Product{ID: "x", Price: price(10), CountInStock: 1}, 1, "", "")
	require.Error(t, err)

	assert.Len(t, sut.Snapshot().Items, 1)
	var items []domain.CartLineItem
	require.NoError(t, store.LoadJSON(ctx, flaky, store.KeyCartItems, &items))
	assert.Len(t, items, 1)
}

func TestStore_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	pub := &mockPublisher{}
	sut := NewStore(ctx, store.NewMemoryStore(),
		WithPublisher(pub),
		WithIdentity(func() string { return "u1" }))

	_, _ = sut.AddItem(ctx, mug(), 1, "", "")
	_, _ = sut.SaveShippingAddress(ctx, domain.ShippingAddressDraft{Name: "Asha"})
	_, _ = sut.RemoveItem(ctx, "p2")
	_, _ = sut.Clear(ctx)
	_, _ = sut.AddItem(ctx, mug(), 0, "", "")

	assert.Equal(t, []events.Type{events.CartUpdated, events.CartUpdated, events.CartCleared}, pub.types())
	assert.Equal(t, "u1", pub.events[0].UserID)
}

func TestStore_PublishDoesNotHoldCart(t *testing.T) {
	ctx := context.Background()
	pub := &blockingPublisher{entered: make(chan struct{}, 1), release: make(chan struct{})}
	sut := NewStore(ctx, store.NewMemoryStore(), WithPublisher(pub))

	done := make(chan error, 1)
	go func() {
		_, err := sut.AddItem(ctx, mug(), 1, "", "")
		done <- err
	}()
	<-pub.entered

	snapped := make(chan Snapshot, 1)
	go func() { snapped <- sut.Snapshot() }()

	select {
	case snap := <-snapped:
		assert.Equal(t, 1, snap.ItemCount)
	case <-time.After(time.Second):
		t.Fatal("snapshot blocked while an event was being published")
	}

	close(pub.release)
	require.NoError(t, <-done)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	sut := NewStore(ctx, store.NewMemoryStore())
	snap, err := sut.AddItem(ctx, mug(), 1, "", "")
	require.NoError(t, err)

	snap.Items[0].Quantity = 99

	assert.Equal(t, 1, sut.Snapshot().Items[0].Quantity)
}
