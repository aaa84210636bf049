package usecase

import (
	"fmt"

	"aimibot/internal/domain"
)

// Plan is one purchasable subscription.
type Plan struct {
	Key         string
	Title       string
	Description string
	Amount      int // minor units
	Currency    string
	Payload     string
}

var catalog = []Plan{
	{
		Key:         domain.PlanPremium,
		Title:       "Aimi Premium ✨",
		Description: "Conversas e voz ilimitadas! Me tenha sempre com você, sem interrupções.",
		Amount:      2990,
		Currency:    "BRL",
		Payload:     "aimi-premium-v1",
	},
	{
		Key:         domain.PlanNSFWPlus,
		Title:       "Aimi NSFW+ 😈",
		Description: "Ative meu lado mais ousado e provocante. Apenas para maiores de 18 anos.",
		Amount:      4990,
		Currency:    "BRL",
		Payload:     "aimi-nsfw-plus-v1",
	},
}

// Plans returns the catalog in display order.
func Plans() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

func PlanByPayload(payload string) (Plan, bool) {
	for _, p := range catalog {
		if p.Payload == payload {
			return p, true
		}
	}
	return Plan{}, false
}

func PlanByKey(key string) (Plan, bool) {
	for _, p := range catalog {
		if p.Key == key {
			return p, true
		}
	}
	return Plan{}, false
}

var currencySymbols = map[string]string{
	"BRL": "R$",
	"USD": "US$",
	"EUR": "€",
}

// FormatAmount renders minor units the way Brazilian users read prices,
// e.g. "R$ 29,90".
func FormatAmount(amount int, currency string) string {
	symbol, ok := currencySymbols[currency]
	if !ok {
		symbol = currency
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%s %d,%02d", sign, symbol, amount/100, amount%100)
}
