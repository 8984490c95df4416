package stream

import "encoding/json"

// Wire op discriminators (§6).
const (
	opConnection = "connection"
	opStatus     = "status"
	opMCM        = "mcm"
	opOCM        = "ocm"

	opAuthentication     = "authentication"
	opMarketSubscription = "marketSubscription"
	opOrderSubscription  = "orderSubscription"
)

// Change-message ct values.
const (
	ctSubImage    = "SUB_IMAGE"
	ctResubDelta  = "RESUB_DELTA"
	ctHeartbeat   = "HEARTBEAT"
)

// Segmentation markers.
const (
	segStart = "SEG_START"
	segEnd   = "SEG_END"
)

// Status codes.
const (
	statusSuccess = "SUCCESS"
	statusFailure = "FAILURE"
)

// envelope is used only to sniff the `op` discriminator before decoding
// into the op-specific shape — the tagged-variant pattern the design
// notes call for in place of the source's untagged overlay.
type envelope struct {
	Op string `json:"op"`
}

type connectionWire struct {
	Op           string `json:"op"`
	ConnectionID string `json:"connectionId"`
}

type statusWire struct {
	Op                   string `json:"op"`
	ID                   *int64 `json:"id,omitempty"`
	StatusCode           string `json:"statusCode"`
	ErrorCode            string `json:"errorCode,omitempty"`
	ErrorMessage         string `json:"errorMessage,omitempty"`
	ConnectionClosed     bool   `json:"connectionClosed,omitempty"`
	ConnectionsAvailable int    `json:"connectionsAvailable,omitempty"`
}

// changeWire is the shared shape of mcm/ocm frames, including every field
// the segmentation reassembly rules in §4.2 name.
type changeWire struct {
	Op                  string                   `json:"op"`
	ID                  int64                    `json:"id"`
	CT                  string                   `json:"ct,omitempty"`
	SegmentationType    string                   `json:"segmentationType,omitempty"`
	SegmentationEnabled bool                     `json:"segmentationEnabled,omitempty"`
	ConflateMs          int                      `json:"conflateMs,omitempty"`
	HeartbeatMs         int                      `json:"heartbeatMs,omitempty"`
	InitialClk          string                   `json:"initialClk,omitempty"`
	Clk                 string                   `json:"clk,omitempty"`
	PT                  int64                    `json:"pt,omitempty"`
	Status              int                      `json:"status,omitempty"`
	Con                 bool                     `json:"con,omitempty"`
	MC                  []marketChangeWire       `json:"mc,omitempty"`
	OC                  []orderAccountChangeWire `json:"oc,omitempty"`
}

func (c *changeWire) isHeartbeat() bool { return c.CT == ctHeartbeat }

type marketChangeWire struct {
	ID               string              `json:"id"`
	Img              bool                `json:"img,omitempty"`
	MarketDefinition *marketDefWire      `json:"marketDefinition,omitempty"`
	TV               *float64            `json:"tv,omitempty"`
	RC               []runnerChangeWire  `json:"rc,omitempty"`
}

type marketDefWire struct {
	Status   string          `json:"status"`
	Complete bool            `json:"complete,omitempty"`
	Runners  []runnerDefWire `json:"runners"`
}

type runnerDefWire struct {
	ID     int64    `json:"id"`
	Status string   `json:"status"`
	BSP    *float64 `json:"bsp,omitempty"`
}

type runnerChangeWire struct {
	ID   int64         `json:"id"`
	LTP  *float64      `json:"ltp,omitempty"`
	SPN  *float64      `json:"spn,omitempty"`
	SPF  *float64      `json:"spf,omitempty"`
	TV   *float64      `json:"tv,omitempty"`
	ATB  [][2]float64  `json:"atb,omitempty"`
	ATL  [][2]float64  `json:"atl,omitempty"`
	SPB  [][2]float64  `json:"spb,omitempty"`
	SPL  [][2]float64  `json:"spl,omitempty"`
	TRD  [][2]float64  `json:"trd,omitempty"`
	BATB [][3]float64  `json:"batb,omitempty"`
	BATL [][3]float64  `json:"batl,omitempty"`
	BDATB [][3]float64 `json:"bdatb,omitempty"`
	BDATL [][3]float64 `json:"bdatl,omitempty"`
}

type orderAccountChangeWire struct {
	ID        string                  `json:"id"`
	FullImage bool                    `json:"fullImage,omitempty"`
	Closed    *bool                   `json:"closed,omitempty"`
	ORC       []orderRunnerChangeWire `json:"orc,omitempty"`
}

type orderRunnerChangeWire struct {
	ID        int64                              `json:"id"`
	FullImage bool                               `json:"fullImage,omitempty"`
	MB        [][2]float64                       `json:"mb,omitempty"`
	ML        [][2]float64                       `json:"ml,omitempty"`
	UO        []unmatchedOrderWire               `json:"uo,omitempty"`
	SMC       map[string]strategyMatchChangeWire `json:"smc,omitempty"`
}

type strategyMatchChangeWire struct {
	MB [][2]float64 `json:"mb,omitempty"`
	ML [][2]float64 `json:"ml,omitempty"`
}

type unmatchedOrderWire struct {
	ID          string  `json:"id"`
	Price       float64 `json:"p"`
	Size        float64 `json:"s"`
	Side        string  `json:"side"`
	Status      string  `json:"status"`
	Persistence string  `json:"pt,omitempty"`
	Type        string  `json:"ot,omitempty"`
	PlacedDate  int64   `json:"pd,omitempty"`

	SizeMatched         float64 `json:"sm,omitempty"`
	SizeRemaining       float64 `json:"sr,omitempty"`
	SizeLapsed          float64 `json:"sl,omitempty"`
	SizeCancelled       float64 `json:"sc,omitempty"`
	SizeVoided          float64 `json:"sv,omitempty"`
	AveragePriceMatched float64 `json:"avp,omitempty"`
}

// --- outbound messages ---

type authenticationWire struct {
	Op      string `json:"op"`
	AppKey  string `json:"appKey"`
	Session string `json:"session"`
	ID      int64  `json:"id"`
}

type marketFilterWire struct {
	MarketIDs []string `json:"marketIds,omitempty"`
}

type marketSubscriptionWire struct {
	Op                  string           `json:"op"`
	ID                  int64            `json:"id"`
	MarketFilter        marketFilterWire `json:"marketFilter"`
	SegmentationEnabled bool             `json:"segmentationEnabled"`
	ConflateMs          int              `json:"conflateMs,omitempty"`
	HeartbeatMs         int              `json:"heartbeatMs,omitempty"`
}

// OrderFilter mirrors the optional order-subscription filter fields.
type OrderFilter struct {
	IncludeOverallPosition        *bool    `json:"includeOverallPosition,omitempty"`
	CustomerStrategyRefs          []string `json:"customerStrategyRefs,omitempty"`
	PartitionMatchedByStrategyRef bool     `json:"partitionMatchedByStrategyRef,omitempty"`
	AccountIDs                    []int64  `json:"accountIds,omitempty"`
}

type orderSubscriptionWire struct {
	Op                  string       `json:"op"`
	ID                  int64        `json:"id"`
	OrderFilter         *OrderFilter `json:"orderFilter,omitempty"`
	SegmentationEnabled bool         `json:"segmentationEnabled"`
	ConflateMs          int          `json:"conflateMs,omitempty"`
	HeartbeatMs         int          `json:"heartbeatMs,omitempty"`
}

// sniffOp peeks at the `op` discriminator of a raw inbound line without
// committing to a full decode of the op-specific shape.
func sniffOp(line []byte) (string, error) {
	var e envelope
	if err := json.Unmarshal(line, &e); err != nil {
		return "", err
	}
	return e.Op, nil
}
