package broker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	apperrors "trend-trader/internal/errors"
	"trend-trader/internal/models"
)

// ZerodhaBroker adapts Kite Connect to the Broker interface for currency
// derivatives. Entries are marketable limit orders; stop-loss and
// take-profit are attached as a one-cancels-other GTT.
//
// The access token must already be valid: the login flow is handled outside
// this process.
type ZerodhaBroker struct {
	client   *kiteconnect.Client
	exchange string
	product  string

	mu          sync.RWMutex
	instruments map[string]kiteconnect.Instrument
	exits       map[string]exitLegs
}

// exitLegs remembers the protective GTT for a position so its stop can be moved.
type exitLegs struct {
	triggerID  int
	side       models.Side
	quantity   float64
	stopLoss   float64
	takeProfit float64
	lastPrice  float64
}

// ZerodhaConfig holds configuration for Zerodha broker.
type ZerodhaConfig struct {
	APIKey      string
	AccessToken string
	Exchange    string
	Product     string
}

// NewZerodhaBroker creates a new Zerodha broker instance.
func NewZerodhaBroker(cfg ZerodhaConfig) *ZerodhaBroker {
	client := kiteconnect.New(cfg.APIKey)
	client.SetAccessToken(cfg.AccessToken)

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = "CDS"
	}
	product := cfg.Product
	if product == "" {
		product = "NRML"
	}

	return &ZerodhaBroker{
		client:      client,
		exchange:    exchange,
		product:     product,
		instruments: make(map[string]kiteconnect.Instrument),
		exits:       make(map[string]exitLegs),
	}
}

// Ping confirms the access token is accepted.
func (z *ZerodhaBroker) Ping(ctx context.Context) error {
	if _, err := z.client.GetUserProfile(); err != nil {
		return fmt.Errorf("kite session: %v: %w", err, apperrors.ErrCollaboratorUnavailable)
	}
	return nil
}

// FetchCandles fetches the most recent count candles.
func (z *ZerodhaBroker) FetchCandles(ctx context.Context, symbol string, tf models.Timeframe, count int) ([]models.Candle, error) {
	interval, err := mapTimeframeToInterval(tf)
	if err != nil {
		return nil, apperrors.NewBrokerError("fetch_candles", symbol, err)
	}

	inst, err := z.instrument(symbol)
	if err != nil {
		return nil, apperrors.NewBrokerError("fetch_candles", symbol, err)
	}

	// Sessions, weekends and holidays leave gaps; ask for a wider range and trim.
	to := time.Now()
	from := to.Add(-time.Duration(count*3) * tf.Duration())

	data, err := z.client.GetHistoricalData(int(inst.InstrumentToken), interval, from, to, false, false)
	if err != nil {
		return nil, apperrors.NewBrokerError("fetch_candles", symbol, err)
	}

	candles := make([]models.Candle, len(data))
	for i, d := range data {
		candles[i] = models.Candle{
			Timestamp: d.Date.Time,
			Open:      d.Open,
			High:      d.High,
			Low:       d.Low,
			Close:     d.Close,
			Volume:    float64(d.Volume),
		}
	}
	if len(candles) > count {
		candles = candles[len(candles)-count:]
	}

	return candles, nil
}

// CurrentQuote returns the best bid and ask from market depth.
func (z *ZerodhaBroker) CurrentQuote(ctx context.Context, symbol string) (models.Quote, error) {
	key := z.exchange + ":" + symbol
	quotes, err := z.client.GetQuote(key)
	if err != nil {
		return models.Quote{}, apperrors.NewBrokerError("current_quote", symbol, err)
	}

	q, ok := quotes[key]
	if !ok || len(q.Depth.Buy) == 0 || len(q.Depth.Sell) == 0 {
		return models.Quote{}, apperrors.NewBrokerError("current_quote", symbol, apperrors.ErrQuoteUnavailable)
	}

	bid, ask := q.Depth.Buy[0].Price, q.Depth.Sell[0].Price
	if bid <= 0 || ask <= 0 {
		return models.Quote{}, apperrors.NewBrokerError("current_quote", symbol,
			fmt.Errorf("empty book: %w", apperrors.ErrQuoteUnavailable))
	}

	return models.Quote{
		Symbol: symbol,
		Bid:    bid,
		Ask:    ask,
		Time:   q.Timestamp.Time,
	}, nil
}

// InstrumentInfo maps the Kite instrument to trading constraints. Volume is
// expressed in lots, so the minimum and step are both one lot.
func (z *ZerodhaBroker) InstrumentInfo(ctx context.Context, symbol string) (models.InstrumentInfo, error) {
	inst, err := z.instrument(symbol)
	if err != nil {
		return models.InstrumentInfo{}, apperrors.NewBrokerError("instrument_info", symbol, err)
	}

	return models.InstrumentInfo{
		Symbol:         symbol,
		MinVolume:      1,
		VolumeStep:     1,
		PriceIncrement: inst.TickSize,
	}, nil
}

func (z *ZerodhaBroker) instrument(symbol string) (kiteconnect.Instrument, error) {
	z.mu.RLock()
	inst, ok := z.instruments[symbol]
	z.mu.RUnlock()
	if ok {
		return inst, nil
	}

	all, err := z.client.GetInstrumentsByExchange(z.exchange)
	if err != nil {
		return kiteconnect.Instrument{}, fmt.Errorf("loading instruments: %v: %w", err, apperrors.ErrSymbolUnavailable)
	}

	z.mu.Lock()
	defer z.mu.Unlock()
	for _, i := range all {
		z.instruments[i.Tradingsymbol] = i
	}

	inst, ok = z.instruments[symbol]
	if !ok {
		return kiteconnect.Instrument{}, fmt.Errorf("%s:%s: %w", z.exchange, symbol, apperrors.ErrSymbolUnavailable)
	}
	return inst, nil
}

func mapTimeframeToInterval(tf models.Timeframe) (string, error) {
	switch tf {
	case models.Timeframe1Min:
		return "minute", nil
	case models.Timeframe5Min:
		return "5minute", nil
	case models.Timeframe15Min:
		return "15minute", nil
	case models.Timeframe30Min:
		return "30minute", nil
	case models.Timeframe1Hour:
		return "60minute", nil
	case models.Timeframe1Day:
		return "day", nil
	default:
		return "", fmt.Errorf("timeframe %s not offered by kite", tf)
	}
}

// SubmitOrder places the entry and then the protective OCO GTT. When the
// entry succeeds but the GTT does not, the result is returned together with
// an error so the caller still learns about the open position.
func (z *ZerodhaBroker) SubmitOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error) {
	inst, err := z.instrument(req.Symbol)
	if err != nil {
		return nil, apperrors.NewOrderError(req.Symbol, string(req.Side), "instrument lookup", err)
	}

	// Marketable limit: the deviation bounds how far the fill may slip.
	limit := req.Price + float64(req.Deviation)*inst.TickSize
	if req.Side == models.SideSell {
		limit = req.Price - float64(req.Deviation)*inst.TickSize
	}

	validity := "DAY"
	if req.Fill == models.FillOrKill || req.Fill == models.ImmediateOrCancel {
		validity = "IOC"
	}

	quantity := int(math.Round(req.Volume))
	params := kiteconnect.OrderParams{
		Exchange:        z.exchange,
		Tradingsymbol:   req.Symbol,
		TransactionType: string(req.Side),
		OrderType:       "LIMIT",
		Product:         z.product,
		Quantity:        quantity,
		Price:           limit,
		Validity:        validity,
		Tag:             kiteTag(req),
	}

	resp, err := z.client.PlaceOrder(kiteconnect.VarietyRegular, params)
	if err != nil {
		return nil, apperrors.NewOrderError(req.Symbol, string(req.Side), "place order", fmt.Errorf("%v: %w", err, apperrors.ErrExecutionFailure))
	}

	result := &models.OrderResult{
		OrderID: resp.OrderID,
		Status:  "PLACED",
		Price:   req.Price,
		Volume:  req.Volume,
		Comment: req.Comment,
	}

	legs := exitLegs{
		side:       req.Side,
		quantity:   float64(quantity),
		stopLoss:   req.StopLoss,
		takeProfit: req.TakeProfit,
		lastPrice:  req.Price,
	}
	triggerID, err := z.placeExits(req.Symbol, legs)
	if err != nil {
		return result, apperrors.NewOrderError(req.Symbol, string(req.Side), "protective GTT", fmt.Errorf("%v: %w", err, apperrors.ErrExecutionFailure))
	}
	legs.triggerID = triggerID

	z.mu.Lock()
	z.exits[req.Symbol] = legs
	z.mu.Unlock()

	return result, nil
}

// ModifyStop moves the stop leg of the position's protective GTT.
func (z *ZerodhaBroker) ModifyStop(ctx context.Context, symbol string, stopLoss float64) error {
	z.mu.Lock()
	legs, ok := z.exits[symbol]
	z.mu.Unlock()
	if !ok {
		return apperrors.NewBrokerError("modify_stop", symbol, apperrors.ErrNoPosition)
	}

	legs.stopLoss = stopLoss
	if _, err := z.client.ModifyGTT(legs.triggerID, z.gttParams(symbol, legs)); err != nil {
		return apperrors.NewBrokerError("modify_stop", symbol, err)
	}

	z.mu.Lock()
	z.exits[symbol] = legs
	z.mu.Unlock()
	return nil
}

func (z *ZerodhaBroker) placeExits(symbol string, legs exitLegs) (int, error) {
	resp, err := z.client.PlaceGTT(z.gttParams(symbol, legs))
	if err != nil {
		return 0, err
	}
	return resp.TriggerID, nil
}

func (z *ZerodhaBroker) gttParams(symbol string, legs exitLegs) kiteconnect.GTTParams {
	// Long exits sell: take-profit above, stop below. Short exits mirror that.
	upper, lower := legs.takeProfit, legs.stopLoss
	if legs.side == models.SideSell {
		upper, lower = legs.stopLoss, legs.takeProfit
	}

	return kiteconnect.GTTParams{
		Tradingsymbol:   symbol,
		Exchange:        z.exchange,
		LastPrice:       legs.lastPrice,
		TransactionType: string(legs.side.Opposite()),
		Product:         z.product,
		Trigger: &kiteconnect.GTTOneCancelsOtherTrigger{
			Upper: kiteconnect.TriggerParams{
				TriggerValue: upper,
				LimitPrice:   upper,
				Quantity:     legs.quantity,
			},
			Lower: kiteconnect.TriggerParams{
				TriggerValue: lower,
				LimitPrice:   lower,
				Quantity:     legs.quantity,
			},
		},
	}
}

// kiteTag fits the strategy identifier into Kite's 20 character tag.
func kiteTag(req models.OrderRequest) string {
	tag := fmt.Sprintf("m%d", req.Magic)
	if len(tag) > 20 {
		tag = tag[:20]
	}
	return tag
}
