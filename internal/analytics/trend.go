package analytics

import (
	"math"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

const (
	DefaultShortWindow = 7
	DefaultLongWindow  = 30

	increasingRatio = 1.1
	decreasingRatio = 0.9

	highlyVariableCV = 50.0
	variableCV       = 25.0
)

// TrendAnalyzer computes rolling usage statistics over the trailing
// short and long record windows of a group.
type TrendAnalyzer struct {
	short int
	long  int
}

func NewTrendAnalyzer(short, long int) *TrendAnalyzer {
	if short <= 0 {
		short = DefaultShortWindow
	}
	if long < short {
		long = DefaultLongWindow
		if long < short {
			long = short
		}
	}
	return &TrendAnalyzer{short: short, long: long}
}

// LongWindow is the number of trailing records Compute needs.
func (t *TrendAnalyzer) LongWindow() int { return t.long }

func (t *TrendAnalyzer) Compute(records []domain.LedgerRecord) (domain.UsageStats, bool) {
	if len(records) == 0 {
		return domain.UsageStats{}, false
	}

	long := trailing(records, t.long)
	short := long
	if len(short) > t.short {
		short = short[len(short)-t.short:]
	}
	latest := long[len(long)-1]

	avg7 := meanIssued(short)
	avg30 := meanIssued(long)
	minUsage, maxUsage := short[0].Issued, short[0].Issued
	for _, r := range short[1:] {
		if r.Issued < minUsage {
			minUsage = r.Issued
		}
		if r.Issued > maxUsage {
			maxUsage = r.Issued
		}
	}
	stddev := sampleStddev(short, avg7)
	cv := CoefficientOfVariation(stddev, avg7)

	return domain.UsageStats{
		GroupKey:           latest.Key(),
		AvgDailyUsage7d:    avg7,
		AvgDailyUsage30d:   avg30,
		MinUsage7d:         minUsage,
		MaxUsage7d:         maxUsage,
		UsageStddev7d:      stddev,
		TrendDirection:     Trend(avg7, avg30),
		UsageVolatilityPct: cv,
		DemandPattern:      Demand(cv),
		LastUpdated:        domain.Day(latest.Date),
	}, true
}

// Trend compares the short mean against the long mean with a 10% band.
func Trend(avg7, avg30 float64) domain.TrendDirection {
	switch {
	case avg7 > avg30*increasingRatio:
		return domain.TrendIncreasing
	case avg7 < avg30*decreasingRatio:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

func Demand(cv float64) domain.DemandPattern {
	switch {
	case cv > highlyVariableCV:
		return domain.DemandHighlyVariable
	case cv > variableCV:
		return domain.DemandVariable
	default:
		return domain.DemandStable
	}
}

// CoefficientOfVariation is stddev/mean*100, zero when the mean is zero.
func CoefficientOfVariation(stddev, mean float64) float64 {
	if mean == 0 {
		return 0
	}
	return stddev / mean * 100
}

func meanIssued(records []domain.LedgerRecord) float64 {
	var sum int64
	for _, r := range records {
		sum += r.Issued
	}
	return float64(sum) / float64(len(records))
}

// sampleStddev uses n-1; a single observation has no spread.
func sampleStddev(records []domain.LedgerRecord, mean float64) float64 {
	if len(records) < 2 {
		return 0
	}
	var ss float64
	for _, r := range records {
		d := float64(r.Issued) - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(records)-1))
}
