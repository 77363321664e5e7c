package rates

import "ratewatch/internal/models"

// RateSource names the instrument whose cached mid converts one unit into
// its quote unit, e.g. {Code: "ETH_BTC", Quote: BTC} for ETH.
type RateSource struct {
	Code  string
	Quote models.Unit
}

// Converter derives a value in a target unit from a value observed in
// another unit, multiplying through at most two cached mids of one site.
// It reads whatever the cache holds at call time; stale or missing rates
// simply yield an absent result.
type Converter struct {
	cache *Cache
	site  string
	edges map[models.Unit]RateSource
}

// NewConverter builds a converter scoped to one site. edges maps each
// convertible unit to the instrument providing its rate toward the quote
// unit; chains of two edges (altcoin -> BTC -> fiat) are followed.
func NewConverter(cache *Cache, site string, edges map[models.Unit]RateSource) *Converter {
	return &Converter{cache: cache, site: site, edges: edges}
}

// Convert returns value expressed in the "to" unit. Identity when from == to.
// False whenever a required rate is not cached; never zero, never an error.
func (c *Converter) Convert(value float64, from, to models.Unit) (float64, bool) {
	if from == to {
		return value, true
	}

	cur := from
	v := value
	for hop := 0; hop < 2; hop++ {
		edge, ok := c.edges[cur]
		if !ok {
			return 0, false
		}
		mid, ok := c.cache.Value(c.site, edge.Code, FieldMid)
		if !ok {
			return 0, false
		}
		v *= mid
		cur = edge.Quote
		if cur == to {
			return v, true
		}
	}
	return 0, false
}

// InstrumentRef names one tracked instrument for edge derivation.
type InstrumentRef struct {
	Code    string
	Product models.Product
}

// EdgesFor derives a conversion table from a source's tracked instruments:
// each product contributes the edge base-unit -> quote-unit through its
// mid. The first listed instrument of a product wins, so spot instruments
// should precede derivatives sharing the same product.
func EdgesFor(instruments []InstrumentRef) map[models.Unit]RateSource {
	edges := make(map[models.Unit]RateSource)
	for _, inst := range instruments {
		base := inst.Product.BaseUnit()
		if base == models.UnitUnknown {
			continue
		}
		if _, ok := edges[base]; ok {
			continue
		}
		edges[base] = RateSource{Code: inst.Code, Quote: inst.Product.QuoteUnit()}
	}
	return edges
}

// ConvertOptional propagates absence through a conversion: a nil input or
// a missing rate both come out nil.
func (c *Converter) ConvertOptional(value *float64, from, to models.Unit) *float64 {
	if value == nil {
		return nil
	}
	v, ok := c.Convert(*value, from, to)
	if !ok {
		return nil
	}
	return models.Float(v)
}
