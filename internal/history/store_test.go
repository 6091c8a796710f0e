package history

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"broker-fee-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

func statement(period, totalFees string) *models.Statement {
	fees := decimal.RequireFromString(totalFees)
	return &models.Statement{
		FileName: "statement_" + period + ".csv",
		Period:   period,
		Totals:   models.Totals{OvernightFees: fees},
		Summary:  models.StatementSummary{TotalFees: fees, AvgDailyOvernightCost: fees.Div(decimal.NewFromInt(20))},
	}
}

func TestStoreAddGetDelete(t *testing.T) {
	store := NewStore(DefaultConfig())

	stmt := store.Add(statement("2024-10", "100"))
	if stmt.ID == "" {
		t.Fatal("Expected an ID to be assigned")
	}

	got, ok := store.Get(stmt.ID)
	if !ok || got != stmt {
		t.Fatalf("Expected to get the stored statement back")
	}

	kept := store.Add(&models.Statement{ID: "fixed-id", Period: "2024-09"})
	if kept.ID != "fixed-id" {
		t.Errorf("Expected existing ID to be kept, got %s", kept.ID)
	}
	if store.Len() != 2 {
		t.Errorf("Expected 2 statements, got %d", store.Len())
	}

	if !store.Delete(stmt.ID) || store.Delete(stmt.ID) {
		t.Error("Expected delete to succeed once")
	}
	if _, ok := store.Get(stmt.ID); ok {
		t.Error("Expected deleted statement to be gone")
	}
}

func TestStoreListOrder(t *testing.T) {
	store := NewStore(DefaultConfig())
	store.Add(statement("2024-11", "1"))
	first := store.Add(statement("2024-09", "2"))
	store.Add(statement("2024-10", "3"))
	second := store.Add(statement("2024-09", "4"))

	list := store.List()

	var periods []string
	for _, s := range list {
		periods = append(periods, s.Period)
	}
	if strings.Join(periods, ",") != "2024-09,2024-09,2024-10,2024-11" {
		t.Errorf("Expected chronological order, got %v", periods)
	}
	if list[0] != first || list[1] != second {
		t.Error("Expected same-period statements in insertion order")
	}
}

func TestStoreExpiry(t *testing.T) {
	store := NewStore(Config{TTL: 20 * time.Millisecond, CleanupInterval: time.Millisecond})
	stmt := store.Add(statement("2024-10", "1"))

	time.Sleep(60 * time.Millisecond)

	if _, ok := store.Get(stmt.ID); ok {
		t.Error("Expected statement to expire")
	}
}

func TestStoreConcurrentAdd(t *testing.T) {
	store := NewStore(DefaultConfig())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Add(statement("2024-10", "1"))
		}()
	}
	wg.Wait()

	if store.Len() != 50 {
		t.Errorf("Expected 50 statements, got %d", store.Len())
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name       string
		statements []*models.Statement
		wantChange string
		wantOrder  string
	}{
		{"empty", nil, "0", ""},
		{"single", []*models.Statement{statement("2024-10", "100")}, "0", "2024-10"},
		{
			"increase",
			[]*models.Statement{statement("2024-10", "150"), statement("2024-09", "100")},
			"50", "2024-09,2024-10",
		},
		{
			"decrease",
			[]*models.Statement{statement("2024-08", "500"), statement("2024-09", "200"), statement("2024-10", "150")},
			"-25", "2024-08,2024-09,2024-10",
		},
		{
			"previous zero",
			[]*models.Statement{statement("2024-09", "0"), statement("2024-10", "80")},
			"0", "2024-09,2024-10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp := Compare(tt.statements)

			if !cmp.FeeChangePct.Equal(decimal.RequireFromString(tt.wantChange)) {
				t.Errorf("Expected change %s%%, got %s", tt.wantChange, cmp.FeeChangePct)
			}
			var order []string
			for _, p := range cmp.Periods {
				order = append(order, p.Period)
			}
			if strings.Join(order, ",") != tt.wantOrder {
				t.Errorf("Expected order %q, got %q", tt.wantOrder, strings.Join(order, ","))
			}
		})
	}
}

func TestComparisonJSON(t *testing.T) {
	cmp := Compare([]*models.Statement{statement("2024-09", "100"), statement("2024-10", "110")})

	data, err := json.Marshal(cmp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, want := range []string{`"statements":2`, `"feeChangePct":10.0`, `"avgDaily":5.50`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected %s in %s", want, data)
		}
	}
}
