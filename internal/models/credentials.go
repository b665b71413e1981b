package models

// Credentials is the record written at registration time.
type Credentials struct {
	ServerURL   string `json:"server_url"`
	APIKey      string `json:"api_key"`
	DeviceID    string `json:"device_id"`
	DeviceToken string `json:"device_token,omitempty"`
}

// Configured reports whether both the server URL and the API key are present.
func (c *Credentials) Configured() bool {
	return c != nil && c.ServerURL != "" && c.APIKey != ""
}

// Token returns the identity sent with status reports.
func (c *Credentials) Token() string {
	if c.DeviceToken != "" {
		return c.DeviceToken
	}
	return c.DeviceID
}
