package constants

// Page routes used for redirects
const (
	StartRoute     = "/"
	LoginRoute     = "/login"
	DashboardRoute = "/dashboard"
	SettingsRoute  = "/settings"
)

// Route prefixes the middleware keys on
const (
	APIPrefix  = "/api/"
	AuthPrefix = "/auth/"
)
