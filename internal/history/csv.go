package history

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var csvHeader = []string{
	"Action", "Side", "Symbol", "Size",
	"Spot Entry Price", "Spot Exit Price",
	"Futures Entry Price", "Futures Exit Price",
	"Entry Time", "Exit Time",
	"Spot PnL (USD)", "Futures PnL (USD)", "Total Net PnL (USD)",
	"Holding Duration (minutes)",
}

// CSVSink appends one row per closed trade to a per-symbol, per-day file.
// The path template accepts {symbol} and {date} placeholders; a file gets
// the header when it is first created.
type CSVSink struct {
	template string
	now      func() time.Time
}

// NewCSVSink builds a sink from the path template.
func NewCSVSink(template string) *CSVSink {
	return &CSVSink{template: template, now: time.Now}
}

// Write appends the event as one CSV row, creating directories and the file
// as needed.
func (s *CSVSink) Write(_ context.Context, ev Event) error {
	path := s.path(ev.Trade.Symbol)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create trade log dir: %w", err)
		}
	}

	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open trade log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write trade log header: %w", err)
		}
	}
	if err := w.Write(row(ev)); err != nil {
		return fmt.Errorf("write trade log row: %w", err)
	}
	w.Flush()
	return w.Error()
}

func (s *CSVSink) path(symbol string) string {
	p := strings.ReplaceAll(s.template, "{symbol}", symbol)
	return strings.ReplaceAll(p, "{date}", s.now().UTC().Format("2006-01-02"))
}

// row renders one event. OPEN rows leave the exit and PnL columns blank.
func row(ev Event) []string {
	res := ev.Trade
	if ev.Action == ActionOpen {
		return []string{
			string(ev.Action),
			string(res.Side),
			res.Symbol,
			f(res.Size),
			f(res.SpotEntry), "",
			f(res.FutEntry), "",
			res.EntryTime, "",
			"", "", "",
			"",
		}
	}
	return []string{
		string(ev.Action),
		string(res.Side),
		res.Symbol,
		f(res.Size),
		f(res.SpotEntry), f(res.SpotExit),
		f(res.FutEntry), f(res.FutExit),
		res.EntryTime, res.ExitTime,
		f(res.SpotPnL), f(res.FutPnL), f(res.NetPnL),
		f(res.HoldMinutes),
	}
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
