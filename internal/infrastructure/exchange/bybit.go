package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/annealtrade/regimebot/internal/domain"
)

const (
	BybitBaseURL = "https://api.bybit.com"
	BybitWSURL   = "wss://stream.bybit.com/v5/public/linear"
)

// BybitClient is the public market-data surface: kline and ticker fetches
// over REST plus the live trade stream over websocket. All REST calls go
// through a rate limiter and a circuit breaker; an open breaker degrades
// fetches to an error the orchestrator treats as "skip this tick".
type BybitClient struct {
	baseURL string
	wsURL   string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	mu             sync.Mutex
	wsConn         *websocket.Conn
	wsDone         chan struct{}
	priceCallbacks []func(symbol string, price float64)
	subscribed     map[string]bool
}

func NewBybitClient(baseURL, wsURL string, logger *zap.Logger) *BybitClient {
	c := &BybitClient{
		baseURL:    baseURL,
		wsURL:      wsURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(10), 10),
		logger:     logger,
		subscribed: make(map[string]bool),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "bybit-market-data",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

func (c *BybitClient) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(data))
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

// GetCandles fetches up to limit klines, returned in ascending timestamp
// order. Fewer than limit bars is legal early in a listing's history.
func (c *BybitClient) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	path := fmt.Sprintf("/v5/market/kline?category=linear&symbol=%s&interval=%s&limit=%d", symbol, interval, limit)
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var result struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	if result.RetCode != 0 {
		return nil, fmt.Errorf("kline request rejected: %s", result.RetMsg)
	}

	// Bybit returns newest first; reverse into chronological order.
	list := result.Result.List
	candles := make([]domain.Candle, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		row := list[i]
		if len(row) < 6 {
			continue
		}
		ts, _ := strconv.ParseInt(row[0], 10, 64)
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		cls, _ := strconv.ParseFloat(row[4], 64)
		vol, _ := strconv.ParseFloat(row[5], 64)
		candles = append(candles, domain.Candle{
			Time: ts, Open: open, High: high, Low: low, Close: cls, Volume: vol,
		})
	}
	return candles, nil
}

func (c *BybitClient) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	path := "/v5/market/tickers?category=linear&symbol=" + symbol
	body, err := c.get(ctx, path)
	if err != nil {
		return 0, err
	}

	var result struct {
		RetCode int `json:"retCode"`
		Result  struct {
			List []struct {
				LastPrice string `json:"lastPrice"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, err
	}
	if len(result.Result.List) == 0 {
		return 0, fmt.Errorf("symbol %s not found", symbol)
	}
	return strconv.ParseFloat(result.Result.List[0].LastPrice, 64)
}

// OnPrice registers a callback for live trade prices. Register before
// Subscribe.
func (c *BybitClient) OnPrice(cb func(symbol string, price float64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.priceCallbacks = append(c.priceCallbacks, cb)
}

// Subscribe opens the websocket on first use and subscribes to the public
// trade stream for the given symbols.
func (c *BybitClient) Subscribe(symbols []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.wsConn == nil {
		conn, _, err := websocket.DefaultDialer.Dial(c.wsURL, nil)
		if err != nil {
			return fmt.Errorf("websocket dial: %w", err)
		}
		c.wsConn = conn
		c.wsDone = make(chan struct{})
		go c.readLoop(conn, c.wsDone)
	}

	var args []string
	for _, s := range symbols {
		if !c.subscribed[s] {
			args = append(args, "publicTrade."+s)
			c.subscribed[s] = true
		}
	}
	if len(args) == 0 {
		return nil
	}

	msg := map[string]interface{}{"op": "subscribe", "args": args}
	return c.wsConn.WriteJSON(msg)
}

func (c *BybitClient) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.logger.Warn("websocket read failed, stream stopped", zap.Error(err))
			c.mu.Lock()
			if c.wsConn == conn {
				c.wsConn = nil
				c.subscribed = make(map[string]bool)
			}
			c.mu.Unlock()
			return
		}

		var msg struct {
			Topic string `json:"topic"`
			Data  []struct {
				Symbol string `json:"s"`
				Price  string `json:"p"`
			} `json:"data"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if len(msg.Data) == 0 {
			continue
		}

		c.mu.Lock()
		callbacks := make([]func(string, float64), len(c.priceCallbacks))
		copy(callbacks, c.priceCallbacks)
		c.mu.Unlock()

		for _, trade := range msg.Data {
			price, err := strconv.ParseFloat(trade.Price, 64)
			if err != nil {
				continue
			}
			for _, cb := range callbacks {
				cb(trade.Symbol, price)
			}
		}
	}
}

func (c *BybitClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wsConn != nil {
		err := c.wsConn.Close()
		c.wsConn = nil
		return err
	}
	return nil
}
