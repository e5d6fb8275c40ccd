package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

type orderItemDTO struct {
	Product      string  `json:"product"`
	Name         string  `json:"name"`
	Image        string  `json:"image"`
	Price        float64 `json:"price"`
	CountInStock int     `json:"countInStock"`
	Qty          int     `json:"qty"`
	Size         string  `json:"size,omitempty"`
	Color        string  `json:"color,omitempty"`
}

type createOrderDTO struct {
	OrderItems      []orderItemDTO              `json:"orderItems"`
	ShippingAddress domain.ShippingAddressDraft `json:"shippingAddress"`
	PaymentMethod   domain.PaymentMethod        `json:"paymentMethod"`
	ItemsPrice      float64                     `json:"itemsPrice"`
	TotalPrice      float64                     `json:"totalPrice"`
	PaymentProof    string                      `json:"paymentProof,omitempty"`
}

func toCreateOrderDTO(sub domain.OrderSubmission) createOrderDTO {
	items := make([]orderItemDTO, 0, len(sub.LineItems))
	for _, li := range sub.LineItems {
		items = append(items, orderItemDTO{
			Product:      li.ProductID,
			Name:         li.Name,
			Image:        li.Image,
			Price:        li.UnitPrice.InexactFloat64(),
			CountInStock: li.StockSnapshot,
			Qty:          li.Quantity,
			Size:         li.Size,
			Color:        li.Color,
		})
	}
	return createOrderDTO{
		OrderItems:      items,
		ShippingAddress: sub.ShippingAddress,
		PaymentMethod:   sub.PaymentMethod,
		ItemsPrice:      sub.ItemsTotal.InexactFloat64(),
		TotalPrice:      sub.GrandTotal.InexactFloat64(),
		PaymentProof:    sub.PaymentProofRef,
	}
}

// CreateOrder submits sub once. The idempotency key travels in the
// Idempotency-Key header so the API can reject a duplicate.
func (c *Client) CreateOrder(ctx context.Context, token string, sub domain.OrderSubmission) (domain.Order, error) {
	header := http.Header{}
	if sub.IdempotencyKey != "" {
		header.Set("Idempotency-Key", sub.IdempotencyKey)
	}
	var order domain.Order
	if err := c.doJSON(ctx, http.MethodPost, "/api/orders", token, toCreateOrderDTO(sub), &order, header); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (c *Client) MyOrders(ctx context.Context, token string) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.doJSON(ctx, http.MethodGet, "/api/orders/myorders", token, nil, &orders, nil); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	if err := c.doJSON(ctx, http.MethodGet, "/api/products/"+url.PathEscape(id), "", nil, &p, nil); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

type uploadResponse struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// Upload stores a payment proof image and returns the reference the order
// should carry.
func (c *Client) Upload(ctx context.Context, token, filename string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("read upload %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finish multipart body: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.send(ctx, http.MethodPost, "/api/upload", token, &buf, header)
	if err != nil {
		return "", err
	}

	var out uploadResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return "", apperr.Network(fmt.Errorf("decode upload response: %w", err))
	}
	ref := out.Path
	if ref == "" {
		ref = out.URL
	}
	if ref == "" {
		return "", apperr.Network(errors.New("upload response without reference"))
	}
	return ref, nil
}
