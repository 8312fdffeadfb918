package domain

// RequestContext carries the authenticated caller of the admin API.
type RequestContext struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
}
