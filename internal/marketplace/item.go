// Package marketplace defines the capability interface every upstream
// second-hand marketplace implements, the closed-variant domain types it
// returns, and a composite that fans a search out to all configured
// marketplaces concurrently.
//
// Grounded on original_source/src/marketplace.rs (the Marketplace trait and
// Marketplaces composite), marketplace/marktplaats.rs, and
// marketplace/vinted/client.rs.
package marketplace

// Amount is a marketplace-reported monetary amount. Kept as a decimal
// string plus an ISO 4217-ish currency code rather than a float, since the
// core never performs arithmetic on prices — only renders them.
type Amount struct {
	Value    string
	Currency string
}

// PriceKind is the closed set of ways a marketplace can describe an
// asking price. Grounded on the variants implied by
// original_source/src/telegram/render.rs's Price renderer.
type PriceKind int

const (
	PriceFixed PriceKind = iota
	PriceOnRequest
	PriceMinimalBid
	PriceMaximalBid
	PriceSeeDescription
	PriceToBeAgreed
	PriceReserved
	PriceFastBid
	PriceExchange
)

// Price is a tagged union: Kind selects which of Amount is meaningful.
// PriceFixed, PriceMinimalBid, and PriceMaximalBid carry Amount; the rest
// are amount-less.
type Price struct {
	Kind   PriceKind
	Amount Amount
}

// ConditionKind is the closed set of listing conditions a marketplace can
// report.
type ConditionKind int

const (
	ConditionNewWithTags ConditionKind = iota
	ConditionNewWithoutTags
	ConditionNewAsGood
	ConditionNewUnspecified
	ConditionUsedVeryGood
	ConditionUsedGood
	ConditionUsedSatisfactory
	ConditionUsedUnspecified
	ConditionUsedNotFullyFunctional
	ConditionRefurbished
)

// DeliveryKind is the closed set of delivery options a listing can offer.
type DeliveryKind int

const (
	DeliveryCollectionOnly DeliveryKind = iota
	DeliveryShippingOnly
	DeliveryBoth
)

// Seller is the listing's counterparty, as reported by the marketplace.
type Seller struct {
	Name string
	URL  string
}

// Location is an optional toponym with optional coordinates, used to build
// a map link in the renderer.
type Location struct {
	Toponym   string
	Latitude  *float64
	Longitude *float64
}

// Item is the core's marketplace-agnostic listing shape. Every marketplace
// client maps its own wire format onto this struct.
type Item struct {
	ID          string
	Title       string
	Description string
	Price       Price
	Condition   *ConditionKind
	Delivery    *DeliveryKind
	Seller      *Seller
	Location    *Location
	PictureURL  string
	PublicURL   string
}
