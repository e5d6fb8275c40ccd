package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/shopspring/decimal"
)

// Snapshot is an immutable read of the cart. Totals are recomputed from
// Items on every read.
type Snapshot struct {
	Items     []domain.CartLineItem
	Address   domain.ShippingAddressDraft
	ItemCount int
	Total     decimal.Decimal
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0
}

type Store struct {
	mu        sync.Mutex
	state     State
	persist   store.StateStore
	publisher events.Publisher
	identity  func() string
	logger    *slog.Logger
}

type Option func(*Store)

func WithPublisher(p events.Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

// WithIdentity sets the source of the user id stamped on cart events.
func WithIdentity(f func() string) Option {
	return func(s *Store) { s.identity = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore restores the cart from persist. Absent or malformed data yields
// an empty cart; lines that break the quantity invariant are dropped.
func NewStore(ctx context.Context, persist store.StateStore, opts ...Option) *Store {
	s := &Store{
		persist:   persist,
		publisher: events.NopPublisher{},
		identity:  func() string { return "" },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.OrDefault(s.logger)

	var items []domain.CartLineItem
	if s.load(ctx, store.KeyCartItems, &items) {
		for _, li := range items {
			if validLine(li) {
				s.state.Items = append(s.state.Items, li)
				continue
			}
			s.logger.WarnContext(ctx, "dropping invalid persisted cart line",
				"product_id", li.ProductID, "qty", li.Quantity, "stock", li.StockSnapshot)
		}
	}

	var addr domain.ShippingAddressDraft
	if s.load(ctx, store.KeyShippingAddress, &addr) {
		s.state.Address = addr
	}
	return s
}

func (s *Store) load(ctx context.Context, key string, v any) bool {
	err := store.LoadJSON(ctx, s.persist, key, v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, store.ErrNotFound):
	case errors.Is(err, store.ErrMalformed):
		s.logger.WarnContext(ctx, "malformed persisted state, using default", "key", key, "error", err)
	default:
		s.logger.WarnContext(ctx, "failed to read persisted state, using default", "key", key, "error", err)
	}
	return false
}

// Dispatch applies cmd and persists the result before committing it. If
// persistence fails the in-memory cart is unchanged. The event is published
// after the lock is released.
func (s *Store) Dispatch(ctx context.Context, cmd Command) (Snapshot, error) {
	snap, err := s.commit(ctx, cmd)
	if err != nil {
		return snap, err
	}
	s.emit(ctx, cmd, snap)
	return snap, nil
}

func (s *Store) commit(ctx context.Context, cmd Command) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Apply(s.state, cmd)
	if err != nil {
		return s.snapshotLocked(), err
	}
	if err := s.save(ctx, next); err != nil {
		return s.snapshotLocked(), err
	}
	s.state = next
	return s.snapshotLocked(), nil
}

func (s *Store) save(ctx context.Context, next State) error {
	items := next.Items
	if items == nil {
		items = []domain.CartLineItem{}
	}
	if err := store.SaveJSON(ctx, s.persist, store.KeyCartItems, items); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	if err := store.SaveJSON(ctx, s.persist, store.KeyShippingAddress, next.Address); err != nil {
		prev := s.state.Items
		if prev == nil {
			prev = []domain.CartLineItem{}
		}
		if rbErr := store.SaveJSON(ctx, s.persist, store.KeyCartItems, prev); rbErr != nil {
			s.logger.ErrorContext(ctx, "failed to restore persisted cart items", "error", rbErr)
		}
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *Store) emit(ctx context.Context, cmd Command, snap Snapshot) {
	var ev events.Event
	switch cmd.(type) {
	case SaveAddress:
		return
	case Clear:
		ev = events.NewEvent(events.CartCleared, s.identity(), nil)
	default:
		ev = events.NewEvent(events.CartUpdated, s.identity(), map[string]any{
			"item_count": snap.ItemCount,
			"line_count": len(snap.Items),
			"total":      snap.Total.String(),
		})
	}
	events.Emit(ctx, s.publisher, s.logger, ev)
}

func (s *Store) AddItem(ctx context.Context, product domain.Product, quantity int, size, color string) (Snapshot, error) {
	return s.Dispatch(ctx, AddItem{Product: product, Quantity: quantity, Size: size, Color: color})
}

func (s *Store) RemoveItem(ctx context.Context, productID string) (Snapshot, error) {
	return s.Dispatch(ctx, RemoveItem{ProductID: productID})
}

func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) (Snapshot, error) {
	return s.Dispatch(ctx, UpdateQuantity{ProductID: productID, Quantity: quantity})
}

func (s *Store) Clear(ctx context.Context) (Snapshot, error) {
	return s.Dispatch(ctx, Clear{})
}

func (s *Store) SaveShippingAddress(ctx context.Context, addr domain.ShippingAddressDraft) (Snapshot, error) {
	return s.Dispatch(ctx, SaveAddress{Address: addr})
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	items := slices.Clone(s.state.Items)
	return Snapshot{
		Items:     items,
		Address:   s.state.Address,
		ItemCount: pricing.ItemCount(items),
		Total:     pricing.CartTotal(items),
	}
}
