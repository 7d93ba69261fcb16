package market

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/carteira/backend/internal/models"
)

func TestParseBRNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.234,56", "1234.56"},
		{"R$ 37,90", "37.90"},
		{"-0,45%", "-0.45"},
		{"12.345.678", "12345678"},
		{"0,01", "0.01"},
		{" 150 ", "150"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBRNumber(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"parsed %s, want %s", got, tt.want)
		})
	}
}

func TestParseBRNumberRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "-", "abc", "12,34,56"} {
		_, err := ParseBRNumber(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseBRDate(t *testing.T) {
	d, err := ParseBRDate("25/12/2024")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseBRDate("05/01/2025 14:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 5, 14, 30, 0, 0, time.UTC), d)

	_, err = ParseBRDate("2024-12-25")
	assert.Error(t, err)
}

func TestParseCSVSkipsBadRows(t *testing.T) {
	Init("", "", "", zerolog.Nop())

	csvData := strings.Join([]string{
		"Codigo,Nome,Preco,Variacao,Variacao %,Volume,Valor de Mercado,Atualizado",
		"PETR4,Petrobras PN,\"37,90\",\"0,45\",\"1,20\",\"12.345.678\",\"494.000.000.000\",25/12/2024",
		"VALE3,Vale ON,\"61,22\",\"-0,80\",\"-1,29\",\"9.876.543\",\"280.000.000.000\",25/12/2024",
		"BADROW,Sem Preco,n/a,\"0,00\",\"0,00\",\"0\",\"0\",25/12/2024",
	}, "\n")

	assets, err := ParseCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, assets, 2, "the unparseable row is skipped, not fatal")

	petr := assets[0]
	assert.Equal(t, "PETR4", petr.Code)
	assert.Equal(t, "Petrobras PN", petr.Name)
	assert.True(t, petr.CurrentPrice.Equal(decimal.RequireFromString("37.90")))
	assert.True(t, petr.ChangePercent.Equal(decimal.RequireFromString("1.20")))
	assert.Equal(t, int64(12345678), petr.Volume)
	assert.Equal(t, time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC), petr.LastUpdated)
}

func TestParseCSVShortRowsSkipped(t *testing.T) {
	Init("", "", "", zerolog.Nop())

	csvData := "Codigo,Nome\nPETR4,Petrobras\n"
	assets, err := ParseCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestSnapshotReturnsCopy(t *testing.T) {
	mu.Lock()
	currentAssets = []models.MarketAsset{{Code: "PETR4", Name: "Petrobras PN"}}
	lastRefresh = time.Now()
	mu.Unlock()

	assets, _ := Snapshot()
	require.Len(t, assets, 1)
	assets[0].Code = "MUTATED"

	again, _ := Snapshot()
	assert.Equal(t, "PETR4", again[0].Code)
}
