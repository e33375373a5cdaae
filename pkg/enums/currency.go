package enums

// Currency is the ISO 4217 code of an amount held in minor units. IDR has no
// minor unit in practice, so IDR amounts are whole rupiah.
type Currency string

const (
	CurrencyIDR Currency = "IDR"
	CurrencyUSD Currency = "USD"
)

var currencies = values[Currency]{CurrencyIDR, CurrencyUSD}

func (c Currency) IsValid() bool { return currencies.has(c) }
