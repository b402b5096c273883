// Package analysis implements the reference Analyzer: liquidity filters
// followed by moving-average phase classification and relative strength
// against the baseline series.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/JakeFAU/batch-screener/internal/screener"
)

// Phase values. PhaseNone never produces a result.
const (
	PhaseNone      = 0
	PhaseBasing    = 1
	PhaseAdvancing = 2
	PhaseTopping   = 3
	PhaseDeclining = 4
)

// ErrInvalidSeries reports price data the indicators cannot use.
var ErrInvalidSeries = errors.New("invalid series")

// Config holds indicator periods. Zero values select the defaults.
type Config struct {
	MinBars       int
	FastPeriod    int
	SlowPeriod    int
	SlopeLookback int
	// FlatSlopePct is the absolute percent change of the slow average over
	// SlopeLookback bars below which the trend counts as flat.
	FlatSlopePct float64
	VolumePeriod int
	RSPeriod     int
}

// DefaultConfig returns the standard 50/200-day setup.
func DefaultConfig() Config {
	return Config{
		MinBars:       200,
		FastPeriod:    50,
		SlowPeriod:    200,
		SlopeLookback: 20,
		FlatSlopePct:  2.0,
		VolumePeriod:  20,
		RSPeriod:      63,
	}
}

// Analyzer implements screener.Analyzer. It is stateless and safe for
// concurrent use.
type Analyzer struct {
	cfg Config
}

// New builds an Analyzer.
func New(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.MinBars <= 0 {
		cfg.MinBars = def.MinBars
	}
	if cfg.FastPeriod <= 0 {
		cfg.FastPeriod = def.FastPeriod
	}
	if cfg.SlowPeriod <= 0 {
		cfg.SlowPeriod = def.SlowPeriod
	}
	if cfg.SlopeLookback <= 0 {
		cfg.SlopeLookback = def.SlopeLookback
	}
	if cfg.FlatSlopePct <= 0 {
		cfg.FlatSlopePct = def.FlatSlopePct
	}
	if cfg.VolumePeriod <= 0 {
		cfg.VolumePeriod = def.VolumePeriod
	}
	if cfg.RSPeriod <= 0 {
		cfg.RSPeriod = def.RSPeriod
	}
	for _, p := range []int{cfg.FastPeriod, cfg.SlowPeriod, cfg.VolumePeriod} {
		if cfg.MinBars < p {
			cfg.MinBars = p
		}
	}
	return &Analyzer{cfg: cfg}
}

// Payload is the JSON document stored in screener.Result.Payload.
type Payload struct {
	Price            float64  `json:"price"`
	SMAFast          float64  `json:"sma_50"`
	SMASlow          float64  `json:"sma_200"`
	SlowSlopePct     float64  `json:"sma_200_slope_pct"`
	DistanceFastPct  float64  `json:"distance_from_sma_50_pct"`
	AvgVolume        float64  `json:"avg_volume"`
	VolumeRatio      float64  `json:"volume_ratio"`
	Volatility       float64  `json:"volatility"`
	RelativeStrength *float64 `json:"relative_strength,omitempty"`
	Bars             int      `json:"bars"`
}

// Analyze filters and classifies series. It returns nil when the series is
// too short, fails the price or volume filter, or fits no phase.
func (a *Analyzer) Analyze(
	ticker screener.WorkItem,
	series screener.Series,
	baseline screener.Series,
	th screener.Thresholds,
) (*screener.Result, error) {
	if len(series) < a.cfg.MinBars {
		return nil, nil
	}
	closes := series.Closes()
	price := closes[len(closes)-1]
	if math.IsNaN(price) || price <= 0 {
		return nil, fmt.Errorf("%w: last close %v", ErrInvalidSeries, price)
	}
	if price < th.MinPrice || (th.MaxPrice > 0 && price > th.MaxPrice) {
		return nil, nil
	}

	volumes := series.Volumes()
	recentVol := volumes[len(volumes)-a.cfg.VolumePeriod:]
	avgVolume := stat.Mean(recentVol, nil)
	if avgVolume < float64(th.MinVolume) {
		return nil, nil
	}

	fast := talib.Sma(closes, a.cfg.FastPeriod)
	slow := talib.Sma(closes, a.cfg.SlowPeriod)
	smaFast := fast[len(fast)-1]
	smaSlow := slow[len(slow)-1]
	if smaSlow <= 0 || math.IsNaN(smaSlow) {
		return nil, fmt.Errorf("%w: slow average %v", ErrInvalidSeries, smaSlow)
	}
	slope := slopePct(slow, a.cfg.SlowPeriod, a.cfg.SlopeLookback)

	phase := a.classify(price, smaFast, smaSlow, slope)
	if phase == PhaseNone {
		return nil, nil
	}

	payload := Payload{
		Price:            price,
		SMAFast:          round(smaFast, 4),
		SMASlow:          round(smaSlow, 4),
		SlowSlopePct:     round(slope, 4),
		DistanceFastPct:  round((price-smaFast)/smaFast*100, 2),
		AvgVolume:        round(avgVolume, 0),
		Volatility:       round(volatility(closes, a.cfg.VolumePeriod), 6),
		RelativeStrength: relativeStrength(closes, baseline.Closes(), a.cfg.RSPeriod),
		Bars:             len(series),
	}
	if avgVolume > 0 {
		payload.VolumeRatio = round(volumes[len(volumes)-1]/avgVolume, 2)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return &screener.Result{Ticker: ticker, Phase: phase, Payload: raw}, nil
}

func (a *Analyzer) classify(price, smaFast, smaSlow, slope float64) int {
	switch {
	case slope >= a.cfg.FlatSlopePct && price > smaSlow && smaFast > smaSlow:
		return PhaseAdvancing
	case slope <= -a.cfg.FlatSlopePct && price < smaSlow && smaFast < smaSlow:
		return PhaseDeclining
	case math.Abs(slope) < a.cfg.FlatSlopePct && smaFast <= smaSlow:
		return PhaseBasing
	case math.Abs(slope) < a.cfg.FlatSlopePct && smaFast > smaSlow:
		return PhaseTopping
	default:
		return PhaseNone
	}
}

// slopePct is the percent change of the moving average over lookback bars,
// shortened to the bars where the average is defined.
func slopePct(sma []float64, period, lookback int) float64 {
	defined := len(sma) - period + 1
	if lookback > defined-1 {
		lookback = defined - 1
	}
	if lookback <= 0 {
		return 0
	}
	last := sma[len(sma)-1]
	prev := sma[len(sma)-1-lookback]
	if prev == 0 {
		return 0
	}
	return (last - prev) / prev * 100
}

// relativeStrength compares the period return of closes with the baseline
// over tail-aligned windows. It reports nil when either side is too short.
func relativeStrength(closes, baseline []float64, period int) *float64 {
	if len(closes) <= period || len(baseline) <= period {
		return nil
	}
	own := periodReturn(closes, period)
	base := periodReturn(baseline, period)
	if math.IsNaN(own) || math.IsNaN(base) || base <= -1 {
		return nil
	}
	rs := round(((1+own)/(1+base)-1)*100, 2)
	return &rs
}

func periodReturn(closes []float64, period int) float64 {
	first := closes[len(closes)-1-period]
	if first <= 0 {
		return math.NaN()
	}
	return closes[len(closes)-1]/first - 1
}

// volatility is the standard deviation of daily returns over the last n bars.
func volatility(closes []float64, n int) float64 {
	if len(closes) <= n {
		return 0
	}
	tail := closes[len(closes)-n-1:]
	returns := make([]float64, 0, n)
	for i := 1; i < len(tail); i++ {
		if tail[i-1] > 0 {
			returns = append(returns, tail[i]/tail[i-1]-1)
		}
	}
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
