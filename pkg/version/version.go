package version

// Version is the current version of the interview analyzer
const Version = "0.4.2"

// UserAgent returns the User-Agent string for outbound requests
func UserAgent() string {
	return "interview-analyzer/" + Version
}

// ServerHeader returns the Server header value for HTTP responses
func ServerHeader() string {
	return "interview-analyzer/" + Version
}
