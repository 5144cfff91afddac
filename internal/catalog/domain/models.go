package domain

// Product is the catalog collaborator's view of a gift card product. Money
// amounts are integer cents; the provider wire format uses decimal dollars and
// the client converts on decode.
type Product struct {
	ProductID                   int64
	ProductName                 string
	BrandName                   string
	RecipientCurrencyCode       string
	FixedRecipientDenominations []int64
	FixedSenderDenominations    []int64
	LogoURLs                    []string
}

// CostPriceFor resolves the supplier cost price for a chosen face value. The
// two denomination lists are index-aligned on the provider side.
func (p *Product) CostPriceFor(faceValue int64) (int64, bool) {
	for i, denom := range p.FixedRecipientDenominations {
		if denom == faceValue && i < len(p.FixedSenderDenominations) {
			return p.FixedSenderDenominations[i], true
		}
	}
	return 0, false
}

// OrderRequest is a gift card issuance request.
type OrderRequest struct {
	ProductID        int64
	Quantity         int
	UnitPrice        int64
	RecipientEmail   string
	CustomIdentifier string
}

// Order is the issuance collaborator's response.
type Order struct {
	TransactionID int64
	Status        string
	Code          string
}
