package demo

import (
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rpcexpose/internal/api"
)

// Order is a customer order.
type Order struct {
	ID        string    `json:"id"`
	Customer  string    `json:"customer"`
	Items     []string  `json:"items"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// OrderPatch carries the fields a partial update may change.
type OrderPatch struct {
	Status *string  `json:"status,omitempty"`
	Items  []string `json:"items,omitempty"`
}

// Orders is an in-memory order book, shared by every call.
type Orders struct {
	mu     sync.RWMutex
	orders map[string]Order
	now    func() time.Time
}

// NewOrders creates an empty order book.
func NewOrders() *Orders {
	return &Orders{orders: make(map[string]Order), now: time.Now}
}

// CreateOrder stores order under a new id.
func (o *Orders) CreateOrder(order Order) (Order, error) {
	if order.Customer == "" {
		return Order{}, &api.BadRequestError{Parameter: "order", Err: errors.New("customer is required")}
	}
	order.ID = uuid.NewString()
	order.Status = "open"
	order.CreatedAt = o.now().UTC()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.orders[order.ID] = order
	return order, nil
}

// GetOrder returns the order with id.
func (o *Orders) GetOrder(id string) (Order, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	order, ok := o.orders[id]
	if !ok {
		return Order{}, api.NewNotFoundError("order", id)
	}
	return order, nil
}

// ListOrders returns every order, oldest first.
func (o *Orders) ListOrders() []Order {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Order, 0, len(o.orders))
	for _, order := range o.orders {
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// UpdateOrder replaces the customer and items of an order.
func (o *Orders) UpdateOrder(id string, order Order) (Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	existing, ok := o.orders[id]
	if !ok {
		return Order{}, api.NewNotFoundError("order", id)
	}
	existing.Customer = order.Customer
	existing.Items = order.Items
	o.orders[id] = existing
	return existing, nil
}

// PatchOrder applies the set fields of patch.
func (o *Orders) PatchOrder(id string, patch OrderPatch) (Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	existing, ok := o.orders[id]
	if !ok {
		return Order{}, api.NewNotFoundError("order", id)
	}
	if patch.Status != nil {
		existing.Status = *patch.Status
	}
	if patch.Items != nil {
		existing.Items = patch.Items
	}
	o.orders[id] = existing
	return existing, nil
}

// DeleteOrder removes an order.
func (o *Orders) DeleteOrder(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.orders[id]; !ok {
		return api.NewNotFoundError("order", id)
	}
	delete(o.orders, id)
	return nil
}

func (o *Orders) RouteOptions() map[string]api.MethodOptions {
	id := []string{"id"}
	return map[string]api.MethodOptions{
		"CreateOrder": {Path: "create", Verb: http.MethodPost, Params: []string{"order"}, SuccessStatus: http.StatusCreated},
		"GetOrder":    {Path: "get", Verb: http.MethodGet, Params: id},
		"ListOrders":  {Path: "list", Verb: http.MethodGet},
		"UpdateOrder": {Path: "update", Verb: http.MethodPut, Params: []string{"id", "order"}},
		"PatchOrder":  {Path: "patch", Verb: http.MethodPatch, Params: []string{"id", "patch"}},
		"DeleteOrder": {Path: "delete", Verb: http.MethodDelete, Params: id},
	}
}
