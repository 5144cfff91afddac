package domain

// Service computes purchase pricing from a supplier cost price.
type Service interface {
	Quote(costPrice int64) (Quote, error)
}
