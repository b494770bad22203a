package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/fundledger/internal/auth"
	"github.com/ksred/fundledger/internal/database"
	"github.com/ksred/fundledger/internal/fees"
	"github.com/ksred/fundledger/internal/investor"
	"github.com/ksred/fundledger/internal/ledger"
	"github.com/ksred/fundledger/internal/operating"
	"github.com/ksred/fundledger/internal/returns"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	minInvestors  = 5
	maxInvestors  = 25
	numWorkers    = 5
	resultDays    = 10
	serverAddress = "http://localhost:8080"
)

var frequencies = []string{"MONTHLY", "QUARTERLY", "SEMESTRAL", "ANNUAL"}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the ledger API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":     {name: "Authentication"},
			"investor": {name: "Create Investor"},
			"deposit":  {name: "Deposit"},
			"preview":  {name: "Preview Result"},
			"apply":    {name: "Apply Result"},
			"fee":      {name: "Apply Fee"},
			"twr":      {name: "Get TWR"},
		},
	}

	// Get auth token
	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// doJSON performs an authenticated JSON request and decodes the data
// envelope into out
func (sc *simulationClient) doJSON(statKey, method, path string, payload, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.stats[statKey].addDuration(time.Since(start))
	}()

	var reqBody io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(body)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats[statKey].failures++
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats[statKey].failures++
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return json.Unmarshal(envelope.Data, out)
}

// createInvestor registers a new investor and returns its ID
func (sc *simulationClient) createInvestor(workerID, seq int) (string, error) {
	payload := map[string]interface{}{
		"name":                  fmt.Sprintf("Investor %d-%d", workerID, seq),
		"email":                 fmt.Sprintf("investor-%d-%d@example.com", workerID, seq),
		"trading_fee_frequency": frequencies[rand.Intn(len(frequencies))],
		"trading_fee_percent":   float64(rand.Intn(30) + 10),
	}

	var created struct {
		InvestorID string `json:"investor_id"`
	}
	if err := sc.doJSON("investor", "POST", "/api/v1/investors", payload, &created); err != nil {
		return "", err
	}
	if created.InvestorID == "" {
		return "", fmt.Errorf("no investor ID in response")
	}
	return created.InvestorID, nil
}

// deposit credits an investor with an initial backdated balance
func (sc *simulationClient) deposit(investorID string, amount float64, effectiveAt string) error {
	payload := map[string]interface{}{
		"amount":       amount,
		"effective_at": effectiveAt,
		"notes":        "simulated deposit",
	}
	return sc.doJSON("deposit", "POST", fmt.Sprintf("/api/v1/investors/%s/deposits", investorID), payload, nil)
}

// previewResult previews a daily operating result
func (sc *simulationClient) previewResult(date string, percent float64) (float64, error) {
	payload := map[string]interface{}{"date": date, "percent": percent}

	var preview struct {
		TotalDelta string `json:"total_delta"`
		NoImpact   bool   `json:"no_impact"`
	}
	if err := sc.doJSON("preview", "POST", "/api/v1/operating-results/preview", payload, &preview); err != nil {
		return 0, err
	}
	delta, _ := strconv.ParseFloat(preview.TotalDelta, 64)
	return delta, nil
}

// applyResult commits a daily operating result
func (sc *simulationClient) applyResult(date string, percent float64) (float64, error) {
	payload := map[string]interface{}{
		"date":    date,
		"percent": percent,
		"notes":   "simulated daily result",
	}

	var applied struct {
		TotalDelta string `json:"total_delta"`
	}
	if err := sc.doJSON("apply", "POST", "/api/v1/operating-results", payload, &applied); err != nil {
		return 0, err
	}
	delta, _ := strconv.ParseFloat(applied.TotalDelta, 64)
	return delta, nil
}

// applyMonthlyFee applies a trading fee for last month to a MONTHLY investor
func (sc *simulationClient) applyMonthlyFee(investorID, periodStart, periodEnd string) (float64, error) {
	payload := map[string]interface{}{
		"investor_id":  investorID,
		"period_start": periodStart,
		"period_end":   periodEnd,
		"notes":        "simulated monthly fee",
	}

	var fee struct {
		Fee struct {
			FeeAmount string `json:"fee_amount"`
		} `json:"fee"`
	}
	if err := sc.doJSON("fee", "POST", "/api/v1/trading-fees", payload, &fee); err != nil {
		return 0, err
	}
	amount, _ := strconv.ParseFloat(fee.Fee.FeeAmount, 64)
	return amount, nil
}

// getTWR fetches the investor's time-weighted return
func (sc *simulationClient) getTWR(investorID string) (float64, error) {
	var twr struct {
		TWRPercent string `json:"twr_percent"`
	}
	if err := sc.doJSON("twr", "GET", fmt.Sprintf("/api/v1/investors/%s/twr", investorID), nil, &twr); err != nil {
		return 0, err
	}
	pct, _ := strconv.ParseFloat(twr.TWRPercent, 64)
	return pct, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the portfolio ledger simulation: it seeds investors with
// backdated deposits, backfills daily operating results over the prior
// month, applies a monthly trading fee, and reads back TWR figures.
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// Initialize simulation client
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	targetInvestors := rand.Intn(maxInvestors-minInvestors) + minInvestors
	log.Info().Int("target_investors", targetInvestors).Msg("Starting simulation")

	// Deposits are dated to the first of last month so the backfilled
	// daily results land on balances that already exist.
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local).AddDate(0, -1, 0)
	monthEnd := monthStart.AddDate(0, 1, -1)
	depositDate := monthStart.Format("2006-01-02")

	investorsChan := make(chan string, targetInvestors)
	var wg sync.WaitGroup

	// Start worker goroutines
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			seedInvestorsHTTP(workerID, targetInvestors/numWorkers, simClient, investorsChan, depositDate)
		}(i)
	}

	wg.Wait()
	close(investorsChan)

	var investorIDs []string
	for id := range investorsChan {
		investorIDs = append(investorIDs, id)
	}

	log.Info().Int("investors_created", len(investorIDs)).Msg("All investors seeded")

	stats := struct {
		Investors      int
		ResultsApplied int
		ResultsFailed  int
		FeesApplied    int
		FeesFailed     int
		TotalDelta     float64
		TotalFees      float64
		StartTime      time.Time
	}{
		Investors: len(investorIDs),
		StartTime: time.Now(),
	}

	// Backfill daily results across last month, previewing each first.
	for day := 0; day < resultDays; day++ {
		date := monthStart.AddDate(0, 0, day*2).Format("2006-01-02")
		percent := math.Round((rand.Float64()*3-0.5)*100) / 100

		if _, err := simClient.previewResult(date, percent); err != nil {
			log.Error().Err(err).Str("date", date).Msg("Failed to preview result")
		}

		delta, err := simClient.applyResult(date, percent)
		if err != nil {
			log.Error().Err(err).Str("date", date).Msg("Failed to apply result")
			stats.ResultsFailed++
			continue
		}
		stats.ResultsApplied++
		stats.TotalDelta += delta
		log.Info().
			Str("date", date).
			Float64("percent", percent).
			Float64("total_delta", delta).
			Msg("Daily result applied")
	}

	// Apply last month's fee where the frequency allows it.
	for _, id := range investorIDs {
		amount, err := simClient.applyMonthlyFee(id, monthStart.Format("2006-01-02"), monthEnd.Format("2006-01-02"))
		if err != nil {
			// Expected for non-monthly frequencies and no-profit months
			log.Debug().Err(err).Str("investor_id", id).Msg("Fee not applied")
			stats.FeesFailed++
			continue
		}
		stats.FeesApplied++
		stats.TotalFees += amount
		log.Info().
			Str("investor_id", id).
			Float64("fee_amount", amount).
			Msg("Trading fee applied")
	}

	// Read back TWR for every investor
	for _, id := range investorIDs {
		twr, err := simClient.getTWR(id)
		if err != nil {
			log.Error().Err(err).Str("investor_id", id).Msg("Failed to get TWR")
			continue
		}
		log.Info().
			Str("investor_id", id).
			Float64("twr_percent", twr).
			Msg("TWR computed")
	}

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("PORTFOLIO LEDGER SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
Investors:        %d
Results Applied:  %d
Results Failed:   %d
Fees Applied:     %d
Fees Skipped:     %d
Total Delta:      $%.2f
Total Fees:       $%.2f
Duration:         %v
`, stats.Investors, stats.ResultsApplied, stats.ResultsFailed,
		stats.FeesApplied, stats.FeesFailed,
		stats.TotalDelta, stats.TotalFees, duration.Round(time.Millisecond))

	fmt.Println("\n" + strings.Repeat("=", 80))

	simClient.printPerformanceStats()
}

// seedInvestorsHTTP creates investors with an initial backdated deposit
// Runs as a worker goroutine, sending created investor IDs to investorsChan
func seedInvestorsHTTP(workerID, numInvestors int, simClient *simulationClient, investorsChan chan<- string, depositDate string) {
	for i := 0; i < numInvestors; i++ {
		investorID, err := simClient.createInvestor(workerID, i)
		if err != nil {
			log.Error().Err(err).
				Int("worker_id", workerID).
				Msg("Failed to create investor")
			continue
		}

		amount := float64(rand.Intn(90000) + 10000)
		if err := simClient.deposit(investorID, amount, depositDate); err != nil {
			log.Error().Err(err).
				Str("investor_id", investorID).
				Msg("Failed to deposit")
			continue
		}

		investorsChan <- investorID
		log.Info().
			Int("worker_id", workerID).
			Str("investor_id", investorID).
			Float64("amount", amount).
			Msg("Investor seeded")

		// Random sleep between investors
		time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
	}
}

// startServer initializes and starts the ledger API server
// Sets up all required services, handlers and routes
func startServer() error {
	// Initialize database
	db, err := database.NewDatabase(os.Getenv("DATABASE_PATH"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	authService := auth.NewService("fundledger-secret-key")
	investorService := investor.NewService(db)
	ledgerService := ledger.NewService(db)
	operatingService := operating.NewService(db)
	feeService := fees.NewService(db)
	returnsService := returns.NewService(db)

	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	investorHandlers := investor.NewGinHandlers(investorService)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)
	operatingHandlers := operating.NewGinHandlers(operatingService)
	feeHandlers := fees.NewGinHandlers(feeService)
	returnsHandlers := returns.NewGinHandlers(returnsService)

	// Setup routes without auth middleware for local simulation
	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/token", authHandlers.GenerateTokenHandler())

		investors := v1.Group("/investors")
		{
			investors.POST("", investorHandlers.CreateInvestorHandler())
			investors.GET("", investorHandlers.ListInvestorsHandler())
			investors.GET("/:investor_id", investorHandlers.GetInvestorHandler())
			investors.POST("/:investor_id/deposits", ledgerHandlers.DepositHandler())
			investors.POST("/:investor_id/withdrawals", ledgerHandlers.WithdrawHandler())
			investors.POST("/:investor_id/referral-commissions", ledgerHandlers.ReferralCommissionHandler())
			investors.GET("/:investor_id/portfolio", ledgerHandlers.GetPortfolioHandler())
			investors.GET("/:investor_id/ledger", ledgerHandlers.GetHistoryHandler())
			investors.GET("/:investor_id/twr", returnsHandlers.GetTWRHandler())
			investors.GET("/:investor_id/trading-fees", feeHandlers.ListFeesHandler())
		}

		results := v1.Group("/operating-results")
		{
			results.POST("/preview", operatingHandlers.PreviewHandler())
			results.POST("", operatingHandlers.ApplyHandler())
			results.GET("", operatingHandlers.ListResultsHandler())
		}

		tradingFees := v1.Group("/trading-fees")
		{
			tradingFees.POST("/calculate", feeHandlers.CalculateHandler())
			tradingFees.POST("", feeHandlers.ApplyHandler())
			tradingFees.PUT("/:fee_id", feeHandlers.EditHandler())
			tradingFees.POST("/:fee_id/void", feeHandlers.VoidHandler())
		}
	}

	// Start the server
	return router.Run(":8080")
}
