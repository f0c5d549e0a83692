package charts

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Figure is a Plotly figure as consumed by Plotly.newPlot in web/static/charts.js.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

type Trace struct {
	Type         string    `json:"type"`
	Name         string    `json:"name,omitempty"`
	X            []string  `json:"x,omitempty"`
	Y            []float64 `json:"y,omitempty"`
	IDs          []string  `json:"ids,omitempty"`
	Labels       []string  `json:"labels,omitempty"`
	Parents      []string  `json:"parents,omitempty"`
	Values       []float64 `json:"values,omitempty"`
	BranchValues string    `json:"branchvalues,omitempty"`
	R            []float64 `json:"r,omitempty"`
	Theta        []string  `json:"theta,omitempty"`
	Fill         string    `json:"fill,omitempty"`
	Marker       *Marker   `json:"marker,omitempty"`
}

type Marker struct {
	Color any `json:"color,omitempty"` // one color or one per point
}

type Layout struct {
	Title      string         `json:"title,omitempty"`
	BarMode    string         `json:"barmode,omitempty"`
	Height     int            `json:"height,omitempty"`
	ShowLegend *bool          `json:"showlegend,omitempty"`
	XAxis      *Axis          `json:"xaxis,omitempty"`
	YAxis      *Axis          `json:"yaxis,omitempty"`
	Polar      *Polar         `json:"polar,omitempty"`
	Margin     map[string]int `json:"margin,omitempty"`
}

type Axis struct {
	Title string `json:"title,omitempty"`
}

type Polar struct {
	RadialAxis RadialAxis `json:"radialaxis"`
}

type RadialAxis struct {
	Visible bool      `json:"visible"`
	Range   []float64 `json:"range,omitempty"`
}

const (
	colorOver  = "#d9534f"
	colorUnder = "#5cb85c"
	colorRadar = "rgba(0,123,255,0.7)"
	currency   = "DKK"
)

func (f Figure) JSON() (string, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func floats(ds []decimal.Decimal) []float64 {
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i] = d.InexactFloat64()
	}
	return out
}

func moneyFloats(ms []core.Money) []float64 {
	out := make([]float64, len(ms))
	for i, m := range ms {
		out[i] = m.Decimal().InexactFloat64()
	}
	return out
}

func monthLabels(months []int) []string {
	out := make([]string, len(months))
	for i, m := range months {
		out[i] = time.Month(m).String()[:3]
	}
	return out
}

func boolPtr(b bool) *bool { return &b }
