package config

const (
	// DefaultDatabasePath is the sqlite file holding sessions, auth events and the provider session
	DefaultDatabasePath = "./nutrinani.db"

	// DefaultRegion is used when COGNITO_REGION is not set
	DefaultRegion = "ap-south-1"

	// DefaultPublicURL is the origin redirects fall back to
	DefaultPublicURL = "http://localhost:8188"
)
