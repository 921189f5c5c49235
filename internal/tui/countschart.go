package tui

import (
	"fmt"
	"strings"

	"github.com/cprmachine/cprd/internal/model"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"
)

// CountersPanel renders the run counters as a bar chart with a legend.
type CountersPanel struct {
	counters model.Counters
}

func (p *CountersPanel) SetData(c model.Counters) {
	p.counters = c
}

func (p *CountersPanel) Title() string { return "Run Counters" }

type counterBar struct {
	name  string
	value int64
	color string
}

func (p *CountersPanel) bars() []counterBar {
	return []counterBar{
		{"SHOCK", p.counters.Shocks, "196"},
		{"CPR", p.counters.CprCycles, "39"},
		{"BREATH", p.counters.Ventilations, "42"},
	}
}

// Render draws the panel inside a bordered section of the given size.
func (p *CountersPanel) Render(width, height int, active bool) string {
	style := sectionStyle.Width(width).Height(height)
	if active {
		style = activeSectionStyle.Width(width).Height(height)
	}

	title := chartTitleStyle.Render(p.Title())
	chartHeight := max(3, height-2)
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, title, p.renderContent(width-4, chartHeight)))
}

func (p *CountersPanel) renderContent(chartWidth, chartHeight int) string {
	legendWidth := 16
	actualChartWidth := chartWidth - legendWidth - 2
	if actualChartWidth < 12 {
		actualChartWidth = 12
	}

	bars := p.bars()
	barWidth := max(1, (actualChartWidth-2*(len(bars)-1))/len(bars))

	bc := barchart.New(actualChartWidth, chartHeight,
		barchart.WithBarGap(2),
		barchart.WithBarWidth(barWidth),
		barchart.WithNoAxis(),
	)

	for _, b := range bars {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(b.color)).Background(lipgloss.Color(b.color))
		bc.Push(barchart.BarData{
			Label: b.name,
			Values: []barchart.BarValue{
				{Name: b.name, Value: float64(b.value), Style: style},
			},
		})
	}

	bc.Draw()
	chartLines := strings.Split(bc.View(), "\n")
	for len(chartLines) < chartHeight {
		chartLines = append(chartLines, "")
	}

	legendLines := make([]string, 0, chartHeight)
	for _, b := range bars {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(b.color))
		legendLines = append(legendLines, colorStyle.Render(fmt.Sprintf("%-7s:%6d", b.name, b.value)))
	}
	for len(legendLines) < chartHeight {
		legendLines = append(legendLines, strings.Repeat(" ", legendWidth-2))
	}

	combined := make([]string, 0, chartHeight)
	for i := 0; i < chartHeight; i++ {
		combined = append(combined, chartLines[i]+"  "+legendLines[i])
	}
	return strings.Join(combined, "\n")
}
