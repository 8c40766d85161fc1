package models

import "time"

// ProjectionStatus indicates urgency level for quota depletion.
type ProjectionStatus string

const (
	ProjectionSafe     ProjectionStatus = "SAFE"
	ProjectionWarning  ProjectionStatus = "WARNING"
	ProjectionCritical ProjectionStatus = "CRITICAL"
	ProjectionUnknown  ProjectionStatus = "UNKNOWN"
)

// EntityProjection estimates whether one resource of one account runs out
// before its next reset.
type EntityProjection struct {
	ResetTime         time.Time        `json:"reset_time"`
	DepleteAt         time.Time        `json:"deplete_at"`
	GroupID           string           `json:"group_id"`
	AccountName       string           `json:"account_name"`
	ResourceName      string           `json:"model_name"`
	Status            ProjectionStatus `json:"status"`
	Confidence        string           `json:"confidence"`
	CurrentPercent    float64          `json:"current_percent"`
	CycleRate         float64          `json:"cycle_rate"`      // %/h since the last reset
	HistoricalRate    float64          `json:"historical_rate"` // %/h over the retained history
	HoursLeft         float64          `json:"hours_left"`      // -1 when not consuming
	TimeUntilReset    time.Duration    `json:"time_until_reset"`
	DataPoints        int              `json:"data_points"`
	WillDepleteBefore bool             `json:"will_deplete_before"`
}
