package plan

// Plan is one entry of the public subscription catalog shown on the pricing
// and payment pages. The catalog is informational: stored plan values are
// free text and are not checked against it.
type Plan struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    string   `json:"price"`
	Features []string `json:"features"`
}

type PaymentNetwork struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Asset  string `json:"asset"`
	Amount string `json:"amountLabel"`
}

// DefaultID is the plan the payment page falls back to for unknown ids.
const DefaultID = "advanced"

var catalog = []Plan{
	{
		ID:       "starter",
		Name:     "Starter Plan",
		Price:    "299 - 999",
		Features: []string{"Basic strategies", "5% monthly returns", "Email support"},
	},
	{
		ID:       "advanced",
		Name:     "Advanced Plan",
		Price:    "1000 - 9999",
		Features: []string{"Advanced strategies", "10% monthly returns", "Live chat support"},
	},
	{
		ID:       "professional",
		Name:     "Professional Plan",
		Price:    "10000 - 50000",
		Features: []string{"VIP strategies", "15% monthly returns", "Dedicated manager"},
	},
	{
		ID:       "enterprise",
		Name:     "Enterprise Plan",
		Price:    "50000 - 100000",
		Features: []string{"Custom strategies", "25% monthly returns", "24/7 priority support"},
	},
}

var networks = []PaymentNetwork{
	{ID: "eth", Name: "Ethereum (ERC20)", Asset: "USDT", Amount: "USDT"},
	{ID: "bsc", Name: "BNB Smart Chain (BEP20)", Asset: "USDT", Amount: "USDT"},
	{ID: "sol", Name: "Solana", Asset: "SOL", Amount: "Worth of USD"},
}

// Catalog returns a copy so callers cannot mutate the package-level table.
func Catalog() []Plan {
	out := make([]Plan, len(catalog))
	for i, p := range catalog {
		p.Features = append([]string(nil), p.Features...)
		out[i] = p
	}
	return out
}

func Networks() []PaymentNetwork {
	return append([]PaymentNetwork(nil), networks...)
}

// Lookup mirrors the payment page: unknown ids resolve to the default plan.
func Lookup(id string) (Plan, bool) {
	for _, p := range catalog {
		if p.ID == id {
			p.Features = append([]string(nil), p.Features...)
			return p, true
		}
	}
	for _, p := range catalog {
		if p.ID == DefaultID {
			p.Features = append([]string(nil), p.Features...)
			return p, false
		}
	}
	return Plan{}, false
}
