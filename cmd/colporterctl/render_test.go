package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/internal/reconcile"
)

func intPtr(n int) *int { return &n }

func sampleLines() []reconcile.Line {
	book := domain.Book{ID: 1, Title: "Steps to Christ", Size: domain.SizeSmall, Stock: 100}
	counted := domain.Book{ID: 2, Title: "The Great Controversy", Size: domain.SizeLarge, Stock: 50}
	return []reconcile.Line{
		{Book: book, Row: reconcile.Derived{BookID: 1, Date: "2026-03-01", SystemCount: 70}, Editable: true},
		{
			Book: counted,
			Row: reconcile.Persisted{Count: domain.InventoryCount{
				BookID: 2, CountDate: "2026-03-01", SystemCount: 50,
				ManualCount: intPtr(47), Discrepancy: -3, Status: domain.CountDiscrepancy,
			}},
			Editable:    true,
			Confirmable: true,
		},
	}
}

func TestPrinterLinesTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newPrinter(&buf, false).lines("2026-03-01", sampleLines()))

	out := buf.String()
	assert.Contains(t, out, "BOOK")
	assert.Contains(t, out, "Steps to Christ")
	assert.Contains(t, out, "PENDING")
	assert.Contains(t, out, "-3")
	assert.Contains(t, out, "DISCREPANCY *")
	assert.NotContains(t, out, "\x1b[", "no colors when writing to a buffer")
}

func TestPrinterLinesEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newPrinter(&buf, false).lines("2026-03-01", nil))
	assert.Equal(t, "No active books for 2026-03-01.\n", buf.String())
}

func TestPrinterLinesJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newPrinter(&buf, true).lines("2026-03-01", sampleLines()))

	var got []lineJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.False(t, got[0].Persisted)
	assert.Nil(t, got[0].ManualCount)
	assert.Equal(t, 70, got[0].SystemCount)
	assert.True(t, got[1].Persisted)
	assert.True(t, got[1].Confirmable)
	assert.Equal(t, domain.CountDiscrepancy, got[1].Status)
}

func TestPrinterSummaryCards(t *testing.T) {
	var buf bytes.Buffer
	s := reconcile.Summary{TotalBooks: 3, Verified: 1, Discrepancies: 1, Pending: 1, TotalLostFound: 5}
	require.NoError(t, newPrinter(&buf, false).summary("2026-03-01", s))

	out := buf.String()
	assert.Contains(t, out, "Inventory 2026-03-01")
	for _, label := range []string{"Total books", "Verified", "Discrepancies", "Lost/found"} {
		assert.Contains(t, out, label)
	}
	assert.Contains(t, out, "╭")
}

func TestPrinterCount(t *testing.T) {
	var buf bytes.Buffer
	c := &domain.InventoryCount{BookID: 1, CountDate: "2026-03-01", SystemCount: 70, ManualCount: intPtr(65), Discrepancy: -5, Status: domain.CountVerified}
	b := &domain.Book{Title: "Steps to Christ", Stock: 65}
	require.NoError(t, newPrinter(&buf, false).count("Confirmed", c, b))

	assert.Equal(t,
		"Confirmed: book 1 on 2026-03-01 is VERIFIED (system 70, manual 65, discrepancy -5)\n"+
			"Stock of \"Steps to Christ\" is now 65.\n",
		buf.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
