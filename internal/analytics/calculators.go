package analytics

import "errors"

// ErrBadDenominator is returned for rate calculations over a non-positive base.
var ErrBadDenominator = errors.New("denominator must be positive")

// GrowthRate returns the percentage change from previous to current.
func GrowthRate(previous, current float64) (float64, error) {
	if previous <= 0 {
		return 0, ErrBadDenominator
	}
	return (current - previous) / previous * 100, nil
}

// EngagementRate returns (likes+comments+shares)/views as a percentage.
func EngagementRate(likes, comments, shares, views int64) (float64, error) {
	if views <= 0 {
		return 0, ErrBadDenominator
	}
	return float64(likes+comments+shares) / float64(views) * 100, nil
}

// ClickThroughRate returns clicks/impressions as a percentage.
func ClickThroughRate(clicks, impressions int64) (float64, error) {
	if impressions <= 0 {
		return 0, ErrBadDenominator
	}
	return float64(clicks) / float64(impressions) * 100, nil
}

// AverageViewDuration returns watch time per view in seconds.
func AverageViewDuration(watchTimeMinutes, views int64) (float64, error) {
	if views <= 0 {
		return 0, ErrBadDenominator
	}
	return float64(watchTimeMinutes) * 60 / float64(views), nil
}
