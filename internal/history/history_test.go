package history

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/haykdb/blacksmith/internal/config"
	"github.com/haykdb/blacksmith/internal/ledger"
)

func sampleResult(symbol string) ledger.Result {
	return ledger.Result{
		Side:        ledger.Long,
		Symbol:      symbol,
		Size:        12,
		SpotEntry:   100,
		SpotExit:    101,
		FutEntry:    100.5,
		FutExit:     100,
		EntryTime:   "2026-08-26 10:00:00",
		ExitTime:    "2026-08-26 11:30:45",
		SpotPnL:     12,
		FutPnL:      6,
		NetPnL:      18,
		HoldMinutes: 90.75,
	}
}

func samplePosition(symbol string) ledger.Position {
	return ledger.Position{
		Symbol:       symbol,
		Side:         ledger.Long,
		SpotEntry:    100,
		FuturesEntry: 100.5,
		Size:         12,
		EntryTime:    time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC),
		Open:         true,
	}
}

func TestCSVSinkWritesHeaderOnceAndAppends(t *testing.T) {
	dir := t.TempDir()
	sink := NewCSVSink(filepath.Join(dir, "{symbol}", "trades_{date}.csv"))
	sink.now = func() time.Time {
		return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	}

	ev := Event{Action: ActionClose, Trade: sampleResult("FLMUSDT")}
	if err := sink.Write(context.Background(), ev); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := sink.Write(context.Background(), ev); err != nil {
		t.Fatalf("second write: %v", err)
	}

	path := filepath.Join(dir, "FLMUSDT", "trades_2026-08-26.csv")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus two rows, got %d", len(rows))
	}
	if rows[0][0] != "Action" || rows[0][13] != "Holding Duration (minutes)" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	got := rows[1]
	if got[0] != "CLOSE" || got[1] != "LONG" || got[2] != "FLMUSDT" || got[3] != "12" {
		t.Fatalf("unexpected row %v", got)
	}
	if got[8] != "2026-08-26 10:00:00" || got[13] != "90.75" {
		t.Fatalf("unexpected timestamps %v", got)
	}
	if got[12] != "18" {
		t.Fatalf("unexpected net pnl %q", got[12])
	}
}

func TestCSVSinkOpenRowLeavesExitColumnsBlank(t *testing.T) {
	dir := t.TempDir()
	sink := NewCSVSink(filepath.Join(dir, "trades_{symbol}.csv"))

	ev := Event{Action: ActionOpen, Trade: samplePosition("FLMUSDT").OpenRow()}
	if err := sink.Write(context.Background(), ev); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "trades_FLMUSDT.csv"))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	got := rows[1]
	if got[0] != "OPEN" || got[1] != "LONG" || got[3] != "12" {
		t.Fatalf("unexpected open row %v", got)
	}
	if got[4] != "100" || got[6] != "100.5" || got[8] != "2026-08-26 10:00:00" {
		t.Fatalf("unexpected entry columns %v", got)
	}
	// Exit price, exit time, PnL, and duration columns stay blank.
	for _, i := range []int{5, 7, 9, 10, 11, 12, 13} {
		if got[i] != "" {
			t.Fatalf("expected blank column %d in open row, got %q", i, got[i])
		}
	}
}

type memSink struct {
	mu   sync.Mutex
	rows []Event
}

func (m *memSink) Write(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, ev)
	return nil
}

func (m *memSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func TestRecorderDrainsQueueOnShutdown(t *testing.T) {
	sink := &memSink{}
	rec := NewRecorder(config.History{QueueSize: 8, Policy: "block"}, zerolog.Nop(), sink)

	rec.RecordOpen(samplePosition("FLMUSDT"))
	for i := 0; i < 4; i++ {
		rec.Record(sampleResult("FLMUSDT"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	if sink.count() != 5 {
		t.Fatalf("expected 5 rows flushed, got %d", sink.count())
	}
	if sink.rows[0].Action != ActionOpen || sink.rows[1].Action != ActionClose {
		t.Fatalf("unexpected actions %v %v", sink.rows[0].Action, sink.rows[1].Action)
	}
	if sink.rows[0].Trade.EntryTime != "2026-08-26 10:00:00" {
		t.Fatalf("unexpected open entry time %q", sink.rows[0].Trade.EntryTime)
	}
}

func TestRecorderDropOldestKeepsNewest(t *testing.T) {
	sink := &memSink{}
	rec := NewRecorder(config.History{QueueSize: 2, Policy: "drop_oldest"}, zerolog.Nop(), sink)

	first := sampleResult("FLMUSDT")
	first.ExitTime = "2026-08-26 09:00:00"
	newest := sampleResult("FLMUSDT")
	newest.ExitTime = "2026-08-26 11:00:00"

	rec.Record(first)
	rec.Record(sampleResult("FLMUSDT"))
	rec.Record(newest) // queue full, evicts first

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	if sink.count() != 2 {
		t.Fatalf("expected 2 rows, got %d", sink.count())
	}
	if sink.rows[1].Trade.ExitTime != "2026-08-26 11:00:00" {
		t.Fatalf("expected newest row retained, got %v", sink.rows[1].Trade.ExitTime)
	}
}
