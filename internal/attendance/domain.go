package attendance

import "time"

// Record is one attendance span for a user: clock-in, optionally closed by
// a clock-out or by the auto-close job.
type Record struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	LocationID int64      `json:"location_id,omitempty"`
	ClockInAt  time.Time  `json:"clock_in_at"`
	ClockOutAt *time.Time `json:"clock_out_at,omitempty"`
	ClockInLat float64    `json:"clock_in_lat"`
	ClockInLng float64    `json:"clock_in_lng"`
	AutoClosed bool       `json:"auto_closed"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ListFilter narrows attendance listings.
type ListFilter struct {
	UserID  int64
	From    time.Time
	To      time.Time
	Page    int
	PerPage int
}
