package profile

import "time"

// Profile is the stored per-user body data feeding the calorie calculation.
type Profile struct {
	UserID    string    `json:"user_id"`
	WeightKg  float64   `json:"weight_kg"`
	Age       int       `json:"age"`
	Sex       string    `json:"sex"`
	UpdatedAt time.Time `json:"updated_at"`
}
