package portfolio

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Alias1177/SignalEngine/models"
)

var csvHeader = []string{
	"id", "symbol", "direction", "entry_price", "exit_price", "size",
	"stop_loss", "take_profit", "opened_at", "closed_at", "status", "pnl",
	"confidence", "timeframe", "reasoning",
}

// OpenRisk is the loss taken if every open trade hits its stop
func (t *Tracker) OpenRisk(ctx context.Context) (float64, error) {
	trades, err := t.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list trades: %w", err)
	}

	var total float64
	for _, tr := range trades {
		if tr.IsOpen() {
			total += math.Abs(tr.EntryPrice-tr.StopLoss) * tr.Size
		}
	}
	return total, nil
}

// ExportCSV writes the trades matching filter as CSV, oldest first
func (t *Tracker) ExportCSV(ctx context.Context, w io.Writer, filter models.TradeFilter) error {
	trades, err := t.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, tr := range trades {
		if !Matches(tr, filter) {
			continue
		}
		if err := cw.Write(csvRecord(tr)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRecord(tr models.Trade) []string {
	status := "OPEN"
	var exit, closedAt, pnl string
	if !tr.IsOpen() {
		status = "CLOSED"
		closedAt = tr.ClosedAt.UTC().Format(time.RFC3339)
	}
	if tr.ExitPrice != nil {
		exit = formatFloat(*tr.ExitPrice)
	}
	if tr.PnL != nil {
		pnl = formatFloat(*tr.PnL)
	}

	return []string{
		tr.ID,
		tr.Symbol,
		string(tr.Direction),
		formatFloat(tr.EntryPrice),
		exit,
		formatFloat(tr.Size),
		formatFloat(tr.StopLoss),
		formatFloat(tr.TakeProfit),
		tr.OpenedAt.UTC().Format(time.RFC3339),
		closedAt,
		status,
		pnl,
		formatFloat(tr.Confidence),
		string(tr.Timeframe),
		strings.Join(tr.Reasoning, "; "),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
