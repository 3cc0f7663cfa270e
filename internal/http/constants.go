package httpx

// Page identifiers used in templates and navigation.
const (
	PageHome  = "home"
	PageTool  = "tool"
	PageError = "error"
)

// Template paths used for loading templates in tests and production.
const (
	TemplatePathFromRoot = "frontend/templates"       // From project root
	TemplatePathFromTest = "../../frontend/templates" // From internal/http test files
)

// Form and cookie names shared by handlers and templates.
const (
	// InstanceField carries the form instance id guarded by the submission controller.
	InstanceField = "_instance"
	// FileCountPrefix prefixes the per-field selected-file counts that the
	// validate request sends in place of the uploads.
	FileCountPrefix = "_files."
	// InstanceHeader lets API clients reuse one instance id across submissions.
	InstanceHeader = "X-Instance-Id"
	// ConversationCookie keeps the dashboard's assistant conversation id.
	ConversationCookie = "assistant_conversation"

	conversationCookieMaxAge = 24 * 3600
)

// History limits for the dashboard and the JSON API.
const (
	dashboardHistoryLimit = 10
	maxHistoryLimit       = 200
)

//nolint:gochecknoglobals // static read-only lookup for templates
var contentTemplates = map[string]string{
	PageHome:  "dashboard-content",
	PageTool:  "tool-content",
	PageError: "error-content",
}

// ContentTemplateFor returns the content template for the given CurrentPage.
// Falls back to dashboard-content for unknown pages.
func ContentTemplateFor(currentPage string) string {
	if name, ok := contentTemplates[currentPage]; ok {
		return name
	}
	return "dashboard-content"
}
