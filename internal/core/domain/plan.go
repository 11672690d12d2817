package domain

// Plan describes a subscription tier sold through the payment provider.
// Prices are whole currency units.
type Plan struct {
	ID              string
	Name            string
	BillingMonths   int
	Price           int64
	Currency        string
	ProviderPriceID string
}

var plans = []Plan{
	{
		ID:              "basic_monthly",
		Name:            "Basic",
		BillingMonths:   1,
		Price:           9,
		Currency:        "EUR",
		ProviderPriceID: "price_basic_monthly",
	},
	{
		ID:              "premium_6_months",
		Name:            "Premium",
		BillingMonths:   6,
		Price:           54,
		Currency:        "EUR",
		ProviderPriceID: "price_premium_6_months",
	},
	{
		ID:              "premium_plus_12_months",
		Name:            "Premium Plus",
		BillingMonths:   12,
		Price:           108,
		Currency:        "EUR",
		ProviderPriceID: "price_premium_plus_12_months",
	},
}

// Plans returns the catalog of subscription tiers.
func Plans() []Plan {
	return plans
}

// FindPlanByID looks up a plan by its internal ID.
func FindPlanByID(id string) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// FindPlanByPriceID looks up a plan by the provider's price reference.
func FindPlanByPriceID(priceID string) (Plan, bool) {
	for _, p := range plans {
		if p.ProviderPriceID == priceID {
			return p, true
		}
	}
	return Plan{}, false
}
