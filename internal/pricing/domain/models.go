package domain

// Quote is the per-unit pricing breakdown for one gift card purchase. All
// money amounts are integer cents, rounded at the point of computation so the
// persisted shares always reconcile to the persisted profit.
type Quote struct {
	PurchasePrice int64
	Profit        int64
	CompanyShare  int64
	CharityShare  int64
	CreditsEarned int64
}

// Settings are the parsed pricing parameters.
type Settings struct {
	MarkupPercent       float64
	CompanySplitPercent float64
	CharitySplitPercent float64
	CreditsMultiplier   float64
}
