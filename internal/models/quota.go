package models

// QuotaState is the persisted daily send counter. ResetDate is a local
// calendar date in YYYY-MM-DD form.
type QuotaState struct {
	Count     int    `json:"count"`
	ResetDate string `json:"reset_date"`
}
