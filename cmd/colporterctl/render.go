package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/internal/reconcile"
)

// printer renders store state for a terminal. Colors are dropped
// automatically when out is not a TTY.
type printer struct {
	out      io.Writer
	renderer *lipgloss.Renderer
	json     bool
}

func newPrinter(out io.Writer, asJSON bool) *printer {
	return &printer{out: out, renderer: lipgloss.NewRenderer(out), json: asJSON}
}

var statusColors = map[domain.CountStatus]lipgloss.Color{
	domain.CountPending:     lipgloss.Color("245"),
	domain.CountVerified:    lipgloss.Color("42"),
	domain.CountDiscrepancy: lipgloss.Color("214"),
}

type lineJSON struct {
	BookID      uint               `json:"book_id"`
	Title       string             `json:"title"`
	Size        domain.BookSize    `json:"size"`
	Stock       int                `json:"stock"`
	SystemCount int                `json:"system_count"`
	ManualCount *int               `json:"manual_count"`
	Discrepancy int                `json:"discrepancy"`
	Status      domain.CountStatus `json:"status"`
	Persisted   bool               `json:"persisted"`
	Editable    bool               `json:"editable"`
	Confirmable bool               `json:"confirmable"`
}

func (p *printer) lines(date string, lines []reconcile.Line) error {
	if p.json {
		out := make([]lineJSON, len(lines))
		for i, l := range lines {
			_, persisted := l.Row.(reconcile.Persisted)
			out[i] = lineJSON{
				BookID:      l.Book.ID,
				Title:       l.Book.Title,
				Size:        l.Book.Size,
				Stock:       l.Book.Stock,
				SystemCount: l.Row.System(),
				ManualCount: l.Row.Manual(),
				Discrepancy: l.Row.Discrepancy(),
				Status:      l.Row.Status(),
				Persisted:   persisted,
				Editable:    l.Editable,
				Confirmable: l.Confirmable,
			}
		}
		return p.writeJSON(out)
	}

	if len(lines) == 0 {
		fmt.Fprintf(p.out, "No active books for %s.\n", date)
		return nil
	}

	header := p.renderer.NewStyle().Bold(true)
	cols := []int{6, 32, 7, 8, 8, 8, 13}
	row := func(cells ...string) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = p.renderer.NewStyle().Width(cols[i]).Render(c)
		}
		return strings.TrimRight(strings.Join(parts, " "), " ")
	}

	fmt.Fprintln(p.out, header.Render(row("BOOK", "TITLE", "SIZE", "SYSTEM", "MANUAL", "DIFF", "STATUS")))
	for _, l := range lines {
		manual, diff := "-", "-"
		if m := l.Row.Manual(); m != nil {
			manual = strconv.Itoa(*m)
			diff = fmt.Sprintf("%+d", l.Row.Discrepancy())
		}
		status := p.renderer.NewStyle().Foreground(statusColors[l.Row.Status()]).Render(string(l.Row.Status()))
		if l.Confirmable {
			status += " *"
		}
		fmt.Fprintln(p.out, row(
			strconv.FormatUint(uint64(l.Book.ID), 10),
			truncate(l.Book.Title, cols[1]-1),
			string(l.Book.Size),
			strconv.Itoa(l.Row.System()),
			manual,
			diff,
			status,
		))
	}
	return nil
}

// summary renders the four summary cards side by side
func (p *printer) summary(date string, s reconcile.Summary) error {
	if p.json {
		return p.writeJSON(s)
	}

	card := p.renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 2).
		Align(lipgloss.Center).
		Width(18)
	value := func(n int, color lipgloss.Color) string {
		return p.renderer.NewStyle().Bold(true).Foreground(color).Render(strconv.Itoa(n))
	}

	fmt.Fprintf(p.out, "Inventory %s\n", date)
	fmt.Fprintln(p.out, lipgloss.JoinHorizontal(lipgloss.Top,
		card.Render("Total books\n"+value(s.TotalBooks, lipgloss.Color("252"))),
		card.Render("Verified\n"+value(s.Verified, statusColors[domain.CountVerified])),
		card.Render("Discrepancies\n"+value(s.Discrepancies, statusColors[domain.CountDiscrepancy])),
		card.Render("Lost/found\n"+value(s.TotalLostFound, lipgloss.Color("203"))),
	))
	return nil
}

func (p *printer) count(message string, c *domain.InventoryCount, book *domain.Book) error {
	if p.json {
		return p.writeJSON(struct {
			Count *domain.InventoryCount `json:"count"`
			Book  *domain.Book           `json:"book,omitempty"`
		}{c, book})
	}
	fmt.Fprintf(p.out, "%s: book %d on %s is %s (system %d", message, c.BookID, c.CountDate, c.Status, c.SystemCount)
	if c.ManualCount != nil {
		fmt.Fprintf(p.out, ", manual %d, discrepancy %+d", *c.ManualCount, c.Discrepancy)
	}
	fmt.Fprintln(p.out, ")")
	if book != nil {
		fmt.Fprintf(p.out, "Stock of %q is now %d.\n", book.Title, book.Stock)
	}
	return nil
}

func (p *printer) writeJSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 1 || len(r) < n {
		return s
	}
	return string(r[:n-1]) + "…"
}
