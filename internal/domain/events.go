package domain

import "time"

// Offer is a single price/volume entry on the counter side of a market event:
// either one level of an observed book or an offer synthesized from a trade
// print. Offers are ephemeral; they are rebuilt from each incoming event and
// never persisted.
type Offer struct {
	MarketID    string    `json:"market_id"`
	Timestamp   time.Time `json:"timestamp"`
	PriceCount  int64     `json:"price_count"`
	VolumeCount int64     `json:"volume_count"`
}

// Book is an externally observed order-book snapshot. Asks are sorted
// ascending by price, bids descending; both are counts in the market's bases.
type Book struct {
	MarketID  string    `json:"market_id"`
	Timestamp time.Time `json:"timestamp"`
	Asks      []Offer   `json:"asks"`
	Bids      []Offer   `json:"bids"`
}

// Trade is an externally observed trade print. VolumeCount is signed: a
// negative volume is a sell print (liquidity hitting the bid), a positive one
// a buy print.
type Trade struct {
	MarketID    string    `json:"market_id"`
	Timestamp   time.Time `json:"timestamp"`
	PriceCount  int64     `json:"price_count"`
	VolumeCount int64     `json:"volume_count"`
}

// Market-data event kinds carried on the signal bus.
const (
	MarketEventBook  = "book"
	MarketEventTrade = "trade"
)

// MarketEvent is the wire envelope for market data published on the bus.
// Exactly one of Book or Trade is set, per Type.
type MarketEvent struct {
	Type  string `json:"type"`
	Book  *Book  `json:"book,omitempty"`
	Trade *Trade `json:"trade,omitempty"`
}

// StreamMessage is a single durable message read back from a bus stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}
