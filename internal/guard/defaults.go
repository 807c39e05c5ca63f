package guard

// Version is the guard release reported on install.
const Version = "1.1.0"

const (
	DefaultLoginPath = "/pages/login/index"
	DefaultTokenKey  = "token"

	// PolicyPattern is reported as the matched pattern when the Rego
	// policy, not a whitelist entry, let a path through.
	PolicyPattern = "policy:data.navguard.whitelisted"
)

// DefaultWhiteList whitelists only the login page.
var DefaultWhiteList = []string{DefaultLoginPath}
