package models

import "fmt"

// Product classifies an instrument into a denomination family: the unit it
// is quoted in and the asset being priced. JPYBTC means "BTC quoted in JPY".
// The set is closed; conversion paths are resolved against it.
type Product int

const (
	ProductUnknown Product = iota
	JPYBTC
	USDBTC
	BTCBCH
	BTCETH
	JPYUSD
	JPYEUR
)

var productNames = map[Product]string{
	JPYBTC: "jpy_btc",
	USDBTC: "usd_btc",
	BTCBCH: "btc_bch",
	BTCETH: "btc_eth",
	JPYUSD: "jpy_usd",
	JPYEUR: "jpy_eur",
}

func (p Product) String() string {
	if n, ok := productNames[p]; ok {
		return n
	}
	return "unknown"
}

// QuoteUnit returns the unit prices of this product are denominated in.
func (p Product) QuoteUnit() Unit {
	switch p {
	case JPYBTC, JPYUSD, JPYEUR:
		return JPY
	case USDBTC:
		return USD
	case BTCBCH, BTCETH:
		return BTC
	}
	return UnitUnknown
}

// BaseUnit returns the unit of the asset the product prices, where that
// asset is itself a tradable unit. JPYEUR has no base in the unit set.
func (p Product) BaseUnit() Unit {
	switch p {
	case JPYBTC, USDBTC:
		return BTC
	case BTCBCH:
		return BCH
	case BTCETH:
		return ETH
	case JPYUSD:
		return USD
	}
	return UnitUnknown
}

// ParseProduct resolves a configuration string such as "jpy_btc".
func ParseProduct(s string) (Product, error) {
	for p, n := range productNames {
		if n == s {
			return p, nil
		}
	}
	return ProductUnknown, fmt.Errorf("unknown product '%s'", s)
}

// Unit is a currency of denomination.
type Unit int

const (
	UnitUnknown Unit = iota
	JPY
	USD
	BTC
	ETH
	BCH
)

var unitNames = map[Unit]string{
	JPY: "jpy",
	USD: "usd",
	BTC: "btc",
	ETH: "eth",
	BCH: "bch",
}

func (u Unit) String() string {
	if n, ok := unitNames[u]; ok {
		return n
	}
	return "unknown"
}

// ParseUnit resolves a configuration string such as "jpy".
func ParseUnit(s string) (Unit, error) {
	for u, n := range unitNames {
		if n == s {
			return u, nil
		}
	}
	return UnitUnknown, fmt.Errorf("unknown unit '%s'", s)
}

// Account is the category of an account-scoped metric series.
type Account int

const (
	AccountBalance Account = iota
	AccountCollateral
	AccountVolume
)

func (a Account) String() string {
	switch a {
	case AccountBalance:
		return "balance"
	case AccountCollateral:
		return "collateral"
	case AccountVolume:
		return "volume"
	}
	return "unknown"
}
