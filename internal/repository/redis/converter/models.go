package converter

import "time"

type ProductInfoRedisModel struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Brand           string  `json:"brand"`
	About           string  `json:"about,omitempty"`
	ActualPrice     string  `json:"actual_price"`
	DiscountedPrice string  `json:"discounted_price"`
	Rating          float64 `json:"rating"`
}

// ProfileRedisModel — формат записи user_profile:<user_id>
type ProfileRedisModel struct {
	UserID      string    `json:"user_id"`
	Vector      []float32 `json:"vector"`
	LastEventTS time.Time `json:"last_event_ts"`
}

type ExplanationRedisModel struct {
	Explanation string   `json:"explanation"`
	Evidence    []string `json:"evidence"`
}
