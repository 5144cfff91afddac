package domain

import "context"

// Service is the catalog/issuance collaborator.
type Service interface {
	GetProductByID(ctx context.Context, productID int64) (*Product, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error)
}
