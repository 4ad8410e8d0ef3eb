package model

// ScrapeRequest - body forwarded to the scraper microservice POST /scrape
type ScrapeRequest struct {
	Sources      []string `json:"sources"`
	ForceRefresh bool     `json:"force_refresh"`
}

// CollectorClaims - identity carried by a collector bearer token
type CollectorClaims struct {
	Collector string
	Subject   string
}
