// Package models defines data structures and domain types.
package models

import "slices"

// QuotaSnapshot is one point-in-time observation of every tracked entity.
// Map keys of Usage and ResetAt are EntityKey wire strings.
type QuotaSnapshot struct {
	Usage        map[string]float64 `json:"usage"`
	ResetAt      map[string]int64   `json:"reset_at"`
	AccountNames map[string]string  `json:"account_names"`
	Timestamp    int64              `json:"timestamp"`
}

// NewQuotaSnapshot returns an empty snapshot captured at ts.
func NewQuotaSnapshot(ts int64) QuotaSnapshot {
	return QuotaSnapshot{
		Timestamp:    ts,
		Usage:        make(map[string]float64),
		ResetAt:      make(map[string]int64),
		AccountNames: make(map[string]string),
	}
}

// SnapshotFromAccounts captures the last known quota of every account.
func SnapshotFromAccounts(accounts []Account, ts int64) QuotaSnapshot {
	p := NewQuotaSnapshot(ts)
	for i := range accounts {
		acc := &accounts[i]
		p.AccountNames[acc.ID] = acc.Name()
		if acc.Quota == nil {
			continue
		}
		for _, r := range acc.Quota.Resources {
			key := NewEntityKey(acc.ID, r.Name).String()
			p.Usage[key] = r.Percentage
			if r.ResetAt != nil {
				p.ResetAt[key] = *r.ResetAt
			}
		}
	}
	return p
}

// SortSnapshots orders snapshots by ascending timestamp.
func SortSnapshots(points []QuotaSnapshot) {
	slices.SortStableFunc(points, func(a, b QuotaSnapshot) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
}

// BucketItem is the consumption attributed to one entity within one bucket.
type BucketItem struct {
	GroupID      string  `json:"group_id"`
	AccountName  string  `json:"account_name"`
	ResourceName string  `json:"model_name"`
	Color        string  `json:"color"`
	Usage        float64 `json:"usage"`
}

// UsageBucket covers the half-open interval [StartTime, EndTime).
type UsageBucket struct {
	Items     []BucketItem `json:"items"`
	StartTime int64        `json:"start_time"`
	EndTime   int64        `json:"end_time"`
}

// Total returns the summed usage of all items in the bucket.
func (b *UsageBucket) Total() float64 {
	total := 0.0
	for _, it := range b.Items {
		total += it.Usage
	}
	return total
}

// UsageChartData is a fixed-resolution consumption chart, oldest bucket first.
type UsageChartData struct {
	Buckets        []UsageBucket `json:"buckets"`
	MaxUsage       float64       `json:"max_usage"`
	DisplayMinutes int64         `json:"display_minutes"`
	Interval       int64         `json:"interval"`
}
