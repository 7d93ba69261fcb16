// Package market pulls the external spreadsheet feed and serves the
// latest normalized snapshot from memory. Nothing here is persisted;
// each refresh replaces the whole asset list.
package market

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/user/carteira/backend/internal/models"
)

var (
	currentAssets []models.MarketAsset
	lastRefresh   time.Time
	mu            sync.RWMutex

	// Updates carries each fresh snapshot to the websocket hub.
	// Buffered so a slow hub never stalls a refresh.
	Updates = make(chan []models.MarketAsset, 8)

	feedURL    string
	feedToken  string
	feedCSVURL string
	log        zerolog.Logger

	httpClient = &http.Client{Timeout: 15 * time.Second}
)

// Init stores the feed endpoints from config. Call once at startup,
// before the first Refresh.
func Init(url, token, csvURL string, logger zerolog.Logger) {
	feedURL = url
	feedToken = token
	feedCSVURL = csvURL
	log = logger.With().Str("component", "market-feed").Logger()
}

// Snapshot returns a copy of the latest asset list and when it was taken.
func Snapshot() ([]models.MarketAsset, time.Time) {
	mu.RLock()
	defer mu.RUnlock()
	assets := make([]models.MarketAsset, len(currentAssets))
	copy(assets, currentAssets)
	return assets, lastRefresh
}

// Refresh fetches the feed, preferring the authenticated JSON endpoint
// and falling back to the public CSV export. On total failure the
// previous snapshot is kept.
func Refresh(ctx context.Context) error {
	assets, err := fetchJSON(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("JSON feed failed, falling back to CSV export")
		assets, err = fetchCSV(ctx)
		if err != nil {
			return fmt.Errorf("market feed refresh failed: %w", err)
		}
	}

	mu.Lock()
	currentAssets = assets
	lastRefresh = time.Now()
	mu.Unlock()

	log.Info().Int("assets", len(assets)).Msg("market feed refreshed")

	// Non-blocking send so a full channel drops the snapshot instead
	// of stalling the refresher.
	select {
	case Updates <- assets:
	default:
		log.Warn().Msg("update channel full, dropping market snapshot")
	}

	return nil
}

// sheetResponse mirrors the spreadsheet API payload: a list of rows,
// each a list of cell strings.
type sheetResponse struct {
	Values [][]string `json:"values"`
}

func fetchJSON(ctx context.Context) ([]models.MarketAsset, error) {
	if feedURL == "" {
		return nil, fmt.Errorf("no JSON feed URL configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	if feedToken != "" {
		req.Header.Set("Authorization", "Bearer "+feedToken)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var sheet sheetResponse
	if err := json.NewDecoder(resp.Body).Decode(&sheet); err != nil {
		return nil, fmt.Errorf("error decoding feed response: %w", err)
	}

	return normalizeRows(sheet.Values), nil
}

func fetchCSV(ctx context.Context) ([]models.MarketAsset, error) {
	if feedCSVURL == "" {
		return nil, fmt.Errorf("no CSV export URL configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedCSVURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CSV export returned status %d", resp.StatusCode)
	}

	return ParseCSV(resp.Body)
}

// ParseCSV reads the spreadsheet's CSV export. The first row is the
// header and is skipped.
func ParseCSV(r io.Reader) ([]models.MarketAsset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // the sheet is hand-maintained, row widths vary

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV export: %w", err)
	}
	if len(records) > 0 {
		records = records[1:]
	}

	return normalizeRows(records), nil
}

// normalizeRows converts raw sheet rows into market assets. Rows that
// fail to parse are skipped with a warning; one bad row never fails
// the batch.
func normalizeRows(rows [][]string) []models.MarketAsset {
	assets := make([]models.MarketAsset, 0, len(rows))
	for i, row := range rows {
		asset, err := rowToAsset(row)
		if err != nil {
			log.Warn().Err(err).Int("row", i).Msg("skipping unparseable feed row")
			continue
		}
		assets = append(assets, asset)
	}
	return assets
}

// Sheet column layout: code, name, price, change, change %, volume,
// market value, last updated (DD/MM/YYYY).
func rowToAsset(row []string) (models.MarketAsset, error) {
	if len(row) < 8 {
		return models.MarketAsset{}, fmt.Errorf("expected 8 columns, got %d", len(row))
	}

	price, err := ParseBRNumber(row[2])
	if err != nil {
		return models.MarketAsset{}, fmt.Errorf("price: %w", err)
	}
	change, err := ParseBRNumber(row[3])
	if err != nil {
		return models.MarketAsset{}, fmt.Errorf("change: %w", err)
	}
	changePct, err := ParseBRNumber(row[4])
	if err != nil {
		return models.MarketAsset{}, fmt.Errorf("change percent: %w", err)
	}
	volume, err := ParseBRNumber(row[5])
	if err != nil {
		return models.MarketAsset{}, fmt.Errorf("volume: %w", err)
	}
	marketValue, err := ParseBRNumber(row[6])
	if err != nil {
		return models.MarketAsset{}, fmt.Errorf("market value: %w", err)
	}
	updated, err := ParseBRDate(row[7])
	if err != nil {
		return models.MarketAsset{}, fmt.Errorf("last updated: %w", err)
	}

	code := row[0]
	if code == "" {
		return models.MarketAsset{}, fmt.Errorf("empty asset code")
	}

	return models.MarketAsset{
		Code:          code,
		Name:          row[1],
		CurrentPrice:  price,
		Change:        change,
		ChangePercent: changePct,
		Volume:        volume.IntPart(),
		MarketValue:   marketValue,
		LastUpdated:   updated,
	}, nil
}
