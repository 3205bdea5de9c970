package meter

import "github.com/shopspring/decimal"

// AlertKind names the quantity an alert watches.
type AlertKind string

const (
	AlertCost   AlertKind = "cost"
	AlertTokens AlertKind = "tokens"
)

// Alert reports that a threshold was reached.
type Alert struct {
	Kind  AlertKind       `json:"kind"`
	Limit decimal.Decimal `json:"limit"`
	Value decimal.Decimal `json:"value"`
}

type threshold struct {
	kind  AlertKind
	limit decimal.Decimal
	fired bool
}

// crossedLocked returns alerts for thresholds reached since the last call.
// Each threshold fires once until Reset.
func (m *Meter) crossedLocked() []Alert {
	var out []Alert
	for i := range m.alerts {
		th := &m.alerts[i]
		if th.fired {
			continue
		}
		var v decimal.Decimal
		switch th.kind {
		case AlertCost:
			v = m.snap.EstimatedCost
		case AlertTokens:
			v = decimal.NewFromInt(m.snap.TotalTokens())
		default:
			continue
		}
		if v.GreaterThanOrEqual(th.limit) {
			th.fired = true
			out = append(out, Alert{Kind: th.kind, Limit: th.limit, Value: v})
		}
	}
	return out
}
