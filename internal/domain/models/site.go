// internal/domain/models/site.go
package models

// DefaultSiteName is the site title used when nothing else is configured.
const DefaultSiteName = "PayTrack"
