// Package checkout turns the cart, the shipping address and a payment
// choice into one order submission. Submissions are at most once per call:
// nothing is retried automatically.
package checkout

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/google/uuid"
)

var (
	ErrLoginRequired        = &apperr.Error{Kind: apperr.KindAuth, Message: "Please log in to place your order"}
	ErrEmptyCart            = apperr.Validation("cart", "Your cart is empty")
	ErrInvalidPaymentMethod = apperr.Validation("paymentMethod", "Please select a payment method")
	ErrPaymentProofRequired = apperr.Validation("paymentProof", "Please upload the payment screenshot to continue")
	ErrSubmissionInFlight   = apperr.Validation("", "Your order is already being placed")
)

// OrdersAPI is the part of the commerce API checkout calls.
// Consumers define this interface.
type OrdersAPI interface {
	CreateOrder(ctx context.Context, token string, sub domain.OrderSubmission) (domain.Order, error)
	MyOrders(ctx context.Context, token string) ([]domain.Order, error)
	Upload(ctx context.Context, token, filename string, content io.Reader) (string, error)
}

type SessionSource interface {
	Session() domain.Session
	ExpireIfUnauthorized(ctx context.Context, err error) bool
}

type CartSource interface {
	Snapshot() cart.Snapshot
	SaveShippingAddress(ctx context.Context, addr domain.ShippingAddressDraft) (cart.Snapshot, error)
	Clear(ctx context.Context) (cart.Snapshot, error)
}

type Request struct {
	Address         domain.ShippingAddressDraft
	PaymentMethod   domain.PaymentMethod
	PaymentProofRef string
}

type Result struct {
	Order      domain.Order
	Submission domain.OrderSubmission
}

type Pipeline struct {
	mu         sync.Mutex
	processing bool

	api       OrdersAPI
	session   SessionSource
	cart      CartSource
	validator *AddressValidator
	newKey    func() string
	publisher events.Publisher
	logger    *slog.Logger
}

type Option func(*Pipeline)

func WithPublisher(p events.Publisher) Option {
	return func(pl *Pipeline) { pl.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(pl *Pipeline) { pl.logger = l }
}

func NewPipeline(api OrdersAPI, session SessionSource, cart CartSource, opts ...Option) *Pipeline {
	p := &Pipeline{
		api:       api,
		session:   session,
		cart:      cart,
		validator: NewAddressValidator(),
		newKey:    uuid.NewString,
		publisher: events.NopPublisher{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logger.OrDefault(p.logger)
	return p
}

// IsProcessing reports whether a submission is outstanding.
func (p *Pipeline) IsProcessing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processing
}

// Submit places an order for the current cart. Checks run in this order:
// authenticated session, non-empty cart, address fields, payment. Once the
// address is valid it is saved whatever happens next. On success the cart
// is cleared; on failure cart and address are left as they were and the
// API message is returned unchanged.
func (p *Pipeline) Submit(ctx context.Context, req Request) (Result, error) {
	p.mu.Lock()
	if p.processing {
		p.mu.Unlock()
		return Result{}, ErrSubmissionInFlight
	}
	p.processing = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.processing = false
		p.mu.Unlock()
	}()

	sess := p.session.Session()
	if !sess.IsAuthenticated() {
		return Result{}, ErrLoginRequired
	}
	if p.cart.Snapshot().IsEmpty() {
		return Result{}, ErrEmptyCart
	}

	if err := p.validator.Validate(req.Address); err != nil {
		return Result{}, err
	}
	addr := Normalize(req.Address)
	if _, err := p.cart.SaveShippingAddress(ctx, addr); err != nil {
		p.logger.WarnContext(ctx, "failed to save shipping address", "error", err)
	}

	if !req.PaymentMethod.Valid() {
		return Result{}, ErrInvalidPaymentMethod
	}
	if req.PaymentMethod == domain.PaymentQRCode && req.PaymentProofRef == "" {
		return Result{}, ErrPaymentProofRequired
	}

	snap := p.cart.Snapshot()
	if snap.IsEmpty() {
		return Result{}, ErrEmptyCart
	}
	total := pricing.CartTotal(snap.Items)
	sub := domain.OrderSubmission{
		IdempotencyKey:  p.newKey(),
		LineItems:       snap.Items,
		ShippingAddress: addr,
		PaymentMethod:   req.PaymentMethod,
		ItemsTotal:      total,
		GrandTotal:      total,
	}
	if req.PaymentMethod == domain.PaymentQRCode {
		sub.PaymentProofRef = req.PaymentProofRef
	}

	order, err := p.api.CreateOrder(ctx, sess.Token, sub)
	if err != nil {
		p.session.ExpireIfUnauthorized(ctx, err)
		p.logger.WarnContext(ctx, "order submission failed",
			"idempotency_key", sub.IdempotencyKey, "kind", apperr.KindOf(err).String(), "error", err)
		return Result{}, err
	}

	if _, err := p.cart.Clear(ctx); err != nil {
		p.logger.ErrorContext(ctx, "order placed but cart could not be cleared",
			"order_id", order.ID, "error", err)
	}

	p.logger.InfoContext(ctx, "order placed",
		"order_id", order.ID, "idempotency_key", sub.IdempotencyKey, "total", total.String())
	events.Emit(ctx, p.publisher, p.logger, events.NewEvent(events.OrderSubmitted, sess.User.ID, map[string]any{
		"order_id":        order.ID,
		"idempotency_key": sub.IdempotencyKey,
		"payment_method":  string(sub.PaymentMethod),
		"line_count":      len(sub.LineItems),
		"total":           total.String(),
	}))
	return Result{Order: order, Submission: sub}, nil
}

// MyOrders lists the orders of the logged-in user.
func (p *Pipeline) MyOrders(ctx context.Context) ([]domain.Order, error) {
	sess := p.session.Session()
	if !sess.IsAuthenticated() {
		return nil, ErrLoginRequired
	}
	orders, err := p.api.MyOrders(ctx, sess.Token)
	if err != nil {
		p.session.ExpireIfUnauthorized(ctx, err)
		return nil, err
	}
	return orders, nil
}

// UploadPaymentProof stores the payment screenshot and returns the reference
// to pass as Request.PaymentProofRef.
func (p *Pipeline) UploadPaymentProof(ctx context.Context, filename string, content io.Reader) (string, error) {
	sess := p.session.Session()
	if !sess.IsAuthenticated() {
		return "", ErrLoginRequired
	}
	ref, err := p.api.Upload(ctx, sess.Token, filename, content)
	if err != nil {
		p.session.ExpireIfUnauthorized(ctx, err)
		return "", err
	}
	return ref, nil
}
