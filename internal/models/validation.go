package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SeverityLevel represents the severity of an anomaly
type SeverityLevel string

const (
	SeverityInfo     SeverityLevel = "info"
	SeverityWarning  SeverityLevel = "warning"
	SeverityError    SeverityLevel = "error"
	SeverityCritical SeverityLevel = "critical"
)

// AnomalyType represents the type of anomaly detected in a price series
type AnomalyType string

const (
	AnomalyTypeLogicError  AnomalyType = "logic_error"
	AnomalyTypeSequenceGap AnomalyType = "sequence_gap"
	AnomalyTypeOutOfOrder  AnomalyType = "out_of_order"
	AnomalyTypeDuplicate   AnomalyType = "duplicate"
)

// Anomaly represents a detected data quality issue at a specific row
type Anomaly struct {
	Type        AnomalyType     `json:"type"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Value       decimal.Decimal `json:"value"`
	Threshold   decimal.Decimal `json:"threshold"`
	Severity    SeverityLevel   `json:"severity"`
}

// CreateLogicErrorAnomaly creates an anomaly for an OHLC relationship violation
func CreateLogicErrorAnomaly(date time.Time, description string, violatingValue decimal.Decimal) *Anomaly {
	return &Anomaly{
		Type:        AnomalyTypeLogicError,
		Date:        date,
		Description: description,
		Value:       violatingValue,
		Threshold:   decimal.Zero,
		Severity:    SeverityError,
	}
}

// CreateSequenceGapAnomaly creates an anomaly for missing rows between two dates.
// Value holds the number of missing intervals.
func CreateSequenceGapAnomaly(expectedTime, actualTime time.Time, interval time.Duration) *Anomaly {
	missing := int64(actualTime.Sub(expectedTime)/interval)
	return &Anomaly{
		Type:        AnomalyTypeSequenceGap,
		Date:        actualTime,
		Description: fmt.Sprintf("expected row at %s, next row at %s", expectedTime.Format(time.RFC3339), actualTime.Format(time.RFC3339)),
		Value:       decimal.NewFromInt(missing),
		Threshold:   decimal.Zero,
		Severity:    SeverityWarning,
	}
}

// CreateOutOfOrderAnomaly creates an anomaly for a row dated before its predecessor
func CreateOutOfOrderAnomaly(previous, current time.Time) *Anomaly {
	return &Anomaly{
		Type:        AnomalyTypeOutOfOrder,
		Date:        current,
		Description: fmt.Sprintf("row dated %s follows %s", current.Format(time.RFC3339), previous.Format(time.RFC3339)),
		Value:       decimal.NewFromFloat(current.Sub(previous).Hours()),
		Threshold:   decimal.Zero,
		Severity:    SeverityCritical,
	}
}

// CreateDuplicateAnomaly creates an anomaly for two rows sharing a date
func CreateDuplicateAnomaly(date time.Time) *Anomaly {
	return &Anomaly{
		Type:        AnomalyTypeDuplicate,
		Date:        date,
		Description: fmt.Sprintf("more than one row dated %s", date.Format(time.RFC3339)),
		Value:       decimal.NewFromInt(2),
		Threshold:   decimal.NewFromInt(1),
		Severity:    SeverityError,
	}
}

// ShouldEscalateSeverity reports whether proposed is more severe than current
func ShouldEscalateSeverity(current, proposed SeverityLevel) bool {
	severityOrder := map[SeverityLevel]int{
		SeverityInfo:     0,
		SeverityWarning:  1,
		SeverityError:    2,
		SeverityCritical: 3,
	}
	return severityOrder[proposed] > severityOrder[current]
}

// String returns a compact description used in log lines
func (a *Anomaly) String() string {
	return fmt.Sprintf("%s[%s] %s: %s", a.Type, a.Severity, a.Date.Format("2006-01-02"), a.Description)
}
