package invoice

// MatchRate scans the invoice's locked-rate list for the entry matching the
// given currency's (currencyId, networkId) pair. Returns the first match, or
// false when no rate is locked for that currency. Absence is valid (a currency
// priced at parity, or not yet rate-locked) and is never an error.
func MatchRate(inv *Invoice, sc StoreCurrency) (Rate, bool) {
	if inv == nil {
		return Rate{}, false
	}
	for _, r := range inv.Rates {
		if r.CurrencyID == sc.CurrencyID && r.NetworkID == sc.NetworkID {
			return r, true
		}
	}
	return Rate{}, false
}
