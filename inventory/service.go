package inventory

import (
	"context"

	"github.com/jrsteele09/pcexpress-session/api"
	"github.com/pkg/errors"
)

const (
	ProductsPath       = "/products"
	SuppliersPath      = "/suppliers"
	PurchaseOrdersPath = "/purchase-orders"
)

// Service reads inventory from the remote API. Its client is expected to be
// the session bound one so every call carries the bearer token and keeps the
// session alive.
type Service struct {
	client *api.Client
}

func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := s.client.Get(ctx, ProductsPath, &products); err != nil {
		return nil, errors.Wrap(err, "[ListProducts]")
	}
	return products, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	var suppliers []Supplier
	if err := s.client.Get(ctx, SuppliersPath, &suppliers); err != nil {
		return nil, errors.Wrap(err, "[ListSuppliers]")
	}
	return suppliers, nil
}

func (s *Service) ListPurchaseOrders(ctx context.Context) ([]PurchaseOrder, error) {
	var orders []PurchaseOrder
	if err := s.client.Get(ctx, PurchaseOrdersPath, &orders); err != nil {
		return nil, errors.Wrap(err, "[ListPurchaseOrders]")
	}
	return orders, nil
}

// Dashboard fetches products and summarises them.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return Summarize(products), nil
}
