package constants

// DefaultHazardPhrases are high-priority hazard phrases handed to the
// extraction service as matching guidelines when no site-specific list is
// configured. Order matters: the service treats earlier phrases as higher
// priority.
var DefaultHazardPhrases = []string{
	"work at height",
	"scaffold erection",
	"excavation",
	"confined space",
	"hot work",
	"crane lift",
	"electrical isolation",
	"formwork",
	"rebar installation",
	"demolition",
}
