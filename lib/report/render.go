// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Printer writes reports as tables. Colour is used only when the
// destination is a terminal.
type Printer struct {
	out      io.Writer
	renderer *lipgloss.Renderer
	header   lipgloss.Style
	title    lipgloss.Style
	warn     lipgloss.Style
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	profile := termenv.Ascii
	if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		profile = termenv.ANSI256
	}
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)
	return &Printer{
		out:      w,
		renderer: renderer,
		header:   renderer.NewStyle().Bold(true).Padding(0, 1),
		title:    renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		warn:     renderer.NewStyle().Foreground(lipgloss.Color("208")),
	}
}

// Day writes the report of one day.
func (p *Printer) Day(day Day) error {
	if _, err := fmt.Fprintln(p.out, p.title.Render(fmt.Sprintf("Day %d", day.Day))); err != nil {
		return err
	}
	rows := make([]ServiceDay, 0, len(day.Services)+2)
	rows = append(rows, day.Services...)
	rows = append(rows, day.Overall, day.Cumulative)
	if err := p.write(p.outcomes(rows)); err != nil {
		return err
	}
	if err := p.write(p.timings(rows)); err != nil {
		return err
	}
	if err := p.write(p.staffing(day.Staffing)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(p.out, "active operators %d, pauses today %d, pauses in total %d\n\n",
		day.ActiveOperators, day.Pauses, day.TotalPauses)
	return err
}

// Run writes the final summary.
func (p *Printer) Run(run Run) error {
	heading := fmt.Sprintf("Simulation %s: %d days", run.RunID, len(run.Days))
	if run.Aborted {
		heading += p.warn.Render(" (aborted: " + run.Reason + ")")
	}
	if _, err := fmt.Fprintln(p.out, p.title.Render(heading)); err != nil {
		return err
	}
	rows := append(append([]ServiceDay(nil), run.Services...), run.Overall)
	if err := p.write(p.outcomes(rows)); err != nil {
		return err
	}
	if err := p.write(p.timings(rows)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(p.out, "per day: served %.2f, not served %.2f, pauses %.2f; elapsed %s\n",
		run.PerDay(run.Overall.Served), run.PerDay(run.Overall.NotServed()), run.PerDay(run.Pauses),
		run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	return err
}

func (p *Printer) write(t *table.Table) error {
	_, err := fmt.Fprintln(p.out, t.Render())
	return err
}

func (p *Printer) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(p.renderer.NewStyle()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.header
			}
			style := p.renderer.NewStyle().Padding(0, 1)
			if col > 0 {
				style = style.Align(lipgloss.Right)
			}
			return style
		})
}

func (p *Printer) outcomes(rows []ServiceDay) *table.Table {
	t := p.newTable("service", "tickets", "served", "home", "no service", "failed", "late", "rejected", "no ticket", "timed out", "absent")
	for _, row := range rows {
		t.Row(row.Name,
			count(row.Tickets), count(row.Served), count(row.ReturnedHome),
			count(row.Reasons.NoService), count(row.Reasons.RequestFailed),
			count(row.Reasons.ArrivedLate), count(row.Reasons.Rejected),
			count(row.NoTicket), count(row.TimedOut), count(row.NotArrived))
	}
	return t
}

func (p *Printer) timings(rows []ServiceDay) *table.Table {
	t := p.newTable("service", "wait avg", "wait min", "wait max", "service avg", "service min", "service max")
	for _, row := range rows {
		t.Row(row.Name,
			minutes(row.Wait.Count, row.Wait.AverageMinutes),
			minutes(row.Wait.Count, row.Wait.MinMinutes),
			minutes(row.Wait.Count, row.Wait.MaxMinutes),
			minutes(row.Service.Count, row.Service.AverageMinutes),
			minutes(row.Service.Count, row.Service.MinMinutes),
			minutes(row.Service.Count, row.Service.MaxMinutes))
	}
	return t
}

func (p *Printer) staffing(rows []Staffing) *table.Table {
	t := p.newTable("service", "counters", "operators", "active", "ratio")
	for _, row := range rows {
		ratio := "n/a"
		if row.Counters > 0 {
			ratio = strconv.FormatFloat(row.Ratio, 'f', 2, 64)
		}
		t.Row(row.Service, count(row.Counters), count(row.Operators), count(row.Active), ratio)
	}
	return t
}

func count(n int) string { return humanize.Comma(int64(n)) }

// minutes formats a simulated-minute figure, or n/a for an empty set.
func minutes(samples int, value float64) string {
	if samples == 0 {
		return "n/a"
	}
	return humanize.FormatFloat("#,###.##", value) + "m"
}
