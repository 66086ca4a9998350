package prompt

import (
	_ "embed"
	"strings"
	"text/template"
)

var (
	//go:embed template/system.txt
	systemRaw string

	//go:embed template/profile.txt
	profileRaw string

	systemTmpl = template.Must(template.New("system").Parse(strings.TrimSpace(systemRaw)))
)

// SystemData carries the current-state fields rendered into the system
// prompt on every model call. The prompt is always rebuilt from the
// template; previous prompt strings are never patched.
type SystemData struct {
	CustomerSummary string
	BasketSynopsis  string
}

func RenderSystem(data SystemData) string {
	if strings.TrimSpace(data.CustomerSummary) == "" {
		data.CustomerSummary = "(none yet)"
	}
	if strings.TrimSpace(data.BasketSynopsis) == "" {
		data.BasketSynopsis = "Basket: (empty)"
	}
	var b strings.Builder
	// The template only references fields that exist; execution cannot fail.
	_ = systemTmpl.Execute(&b, data)
	return b.String()
}

// ProfileInstruction is the system prompt for the checkout profile merge.
func ProfileInstruction() string {
	return strings.TrimSpace(profileRaw)
}
