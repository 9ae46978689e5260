package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/PettyFoot/stonks-two-sub010/internal/auth"
	"github.com/PettyFoot/stonks-two-sub010/internal/orders"
	"github.com/PettyFoot/stonks-two-sub010/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serverAddress = "http://localhost:8080"

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// simulationClient handles HTTP communication with the reconciliation API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newSimulationClient() (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 30 * time.Second},
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

func (sc *simulationClient) authenticate() (string, error) {
	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	var result struct {
		Token string `json:"jwt_token"`
	}
	if err := sc.do("POST", "/api/v1/auth/token", credentials, &result); err != nil {
		return "", err
	}
	return result.Token, nil
}

// do performs one API call and decodes the data field of the response
// envelope into out when out is non-nil.
func (sc *simulationClient) do(method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+sc.authToken)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	if !env.Success {
		code, message := "UNKNOWN", "no error detail"
		if env.Error != nil {
			code, message = env.Error.Code, env.Error.Message
		}
		return fmt.Errorf("%s %s: status %d, code %s: %s", method, path, resp.StatusCode, code, message)
	}
	if out != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (sc *simulationClient) importOrders(inputs []orders.OrderInput) (string, error) {
	var result types.ImportResponse
	if err := sc.do("POST", "/api/v1/orders/import", inputs, &result); err != nil {
		return "", err
	}
	return result.ImportBatchID, nil
}

func (sc *simulationClient) buildTrades() (*types.RebuildResponse, error) {
	var result types.RebuildResponse
	if err := sc.do("POST", "/api/v1/trades/build", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (sc *simulationClient) recalculateBatch(batchID string) (*types.RebuildResponse, error) {
	var result types.RebuildResponse
	if err := sc.do("POST", "/api/v1/trades/recalculate/"+batchID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (sc *simulationClient) getTrades() ([]types.Trade, error) {
	var trades []types.Trade
	if err := sc.do("GET", "/api/v1/trades", nil, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

func (sc *simulationClient) validateDeletion(refs []string) (*types.DeletionValidationResponse, error) {
	var result types.DeletionValidationResponse
	payload := map[string][]string{"trade_refs": refs}
	if err := sc.do("POST", "/api/v1/trades/validate-deletion", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (sc *simulationClient) deleteTrades(refs []string) error {
	payload := map[string][]string{"trade_refs": refs}
	return sc.do("POST", "/api/v1/trades/delete", payload, nil)
}

// brokerHistory generates a realistic first upload: a scale-in/scale-out AAPL
// long, a short TSLA round trip on a second account, a position flip on MSFT,
// an order left open, and one malformed record the engine must skip.
func brokerHistory(day time.Time) []orders.OrderInput {
	at := func(h, m int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, time.UTC)
	}

	return []orders.OrderInput{
		// AAPL: partial exits
		{AccountKey: "IBKR-1", Symbol: "AAPL", Side: "BUY", Quantity: 100, Price: 10.00, ExecutedAt: at(14, 30), Commission: 1.00},
		{AccountKey: "IBKR-1", Symbol: "AAPL", Side: "SELL", Quantity: 60, Price: 12.00, ExecutedAt: at(15, 0), Commission: 1.00},
		{AccountKey: "IBKR-1", Symbol: "AAPL", Side: "SELL", Quantity: 40, Price: 11.00, ExecutedAt: at(15, 30), Commission: 1.00},
		// TSLA short on a second account
		{AccountKey: "SCHWAB-7", Symbol: "TSLA", Side: "SELL", Quantity: 20, Price: 250.00, ExecutedAt: at(14, 45), Fees: 0.40},
		{AccountKey: "SCHWAB-7", Symbol: "TSLA", Side: "BUY", Quantity: 20, Price: 245.00, ExecutedAt: at(17, 10), Fees: 0.40},
		// MSFT flip: long 50, sell 80 closes the long and opens a 30 short
		{AccountKey: "IBKR-1", Symbol: "MSFT", Side: "BUY", Quantity: 50, Price: 410.00, ExecutedAt: at(14, 35), Commission: 0.50},
		{AccountKey: "IBKR-1", Symbol: "MSFT", Side: "SELL", Quantity: 80, Price: 415.00, ExecutedAt: at(16, 5), Commission: 0.80},
		// Malformed record: zero quantity, must be skipped with a diagnostic
		{AccountKey: "IBKR-1", Symbol: "AAPL", Side: "BUY", Quantity: 0, Price: 11.50, ExecutedAt: at(16, 0)},
	}
}

// backfill generates a later upload containing an earlier TSLA execution, so
// the incremental rebuild has to replay the whole TSLA group.
func backfill(day time.Time) []orders.OrderInput {
	at := func(h, m int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, time.UTC)
	}

	return []orders.OrderInput{
		{AccountKey: "SCHWAB-7", Symbol: "TSLA", Side: "SELL", Quantity: 10, Price: 252.00, ExecutedAt: at(14, 40), Fees: 0.20},
		{AccountKey: "SCHWAB-7", Symbol: "TSLA", Side: "BUY", Quantity: 10, Price: 248.00, ExecutedAt: at(18, 0), Fees: 0.20},
	}
}

func logTrades(stage string, trades []types.Trade) {
	for _, t := range trades {
		event := log.Info().
			Str("stage", stage).
			Str("trade_ref", t.TradeRef).
			Str("symbol", t.Symbol).
			Str("account_key", t.AccountKey).
			Str("side", t.Side).
			Str("status", t.Status).
			Float64("entry_price", t.EntryPrice).
			Float64("quantity", t.Quantity).
			Float64("pnl", t.Pnl)
		if t.ExitPrice != nil {
			event = event.Float64("exit_price", *t.ExitPrice)
		}
		event.Msg("trade")
	}
}

func main() {
	sc, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create simulation client")
	}

	day := time.Now().UTC().AddDate(0, 0, -7)

	// First upload and full rebuild
	batchID, err := sc.importOrders(brokerHistory(day))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to import broker history")
	}
	log.Info().Str("import_batch_id", batchID).Msg("imported broker history")

	build, err := sc.buildTrades()
	if err != nil {
		log.Fatal().Err(err).Msg("full rebuild failed")
	}
	log.Info().
		Int("trades", len(build.Trades)).
		Int("skipped", len(build.Diagnostics)).
		Msg("full rebuild completed")
	logTrades("full", build.Trades)

	// Backfill upload and incremental rebuild
	backfillID, err := sc.importOrders(backfill(day))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to import backfill")
	}

	recalc, err := sc.recalculateBatch(backfillID)
	if err != nil {
		log.Fatal().Err(err).Msg("incremental rebuild failed")
	}
	log.Info().
		Str("import_batch_id", backfillID).
		Int("trades", len(recalc.Trades)).
		Msg("incremental rebuild completed")
	logTrades("incremental", recalc.Trades)

	trades, err := sc.getTrades()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to fetch trades")
	}

	// Deleting one half of the MSFT flip must be blocked: the flip order is
	// shared between the closed long and the open short.
	var flipRef, cleanRef string
	for _, t := range trades {
		switch {
		case t.Symbol == "MSFT" && t.Status == types.StatusClosed:
			flipRef = t.TradeRef
		case t.Symbol == "AAPL" && t.Status == types.StatusClosed:
			cleanRef = t.TradeRef
		}
	}

	if flipRef != "" {
		validation, err := sc.validateDeletion([]string{flipRef})
		if err != nil {
			log.Fatal().Err(err).Msg("deletion validation failed")
		}
		log.Info().
			Bool("can_delete", validation.CanDelete).
			Int("shared_order_count", validation.SharedOrderCount).
			Strs("affected_trades", validation.AffectedTrades).
			Msg("flip trade deletion validated")
	}

	if cleanRef != "" {
		if err := sc.deleteTrades([]string{cleanRef}); err != nil {
			log.Fatal().Err(err).Msg("clean trade deletion failed")
		}
		log.Info().Str("trade_ref", cleanRef).Msg("clean trade deleted")
	}

	log.Info().Msg("simulation completed")
}
