package server

import (
	_ "embed"
	"html/template"
)

//go:embed templates/logged_out.html
var loggedOutPageTemplateHTML string

//go:embed templates/overwritten_session.html
var overwrittenSessionPageTemplateHTML string

var loggedOutPageTemplate = template.Must(template.New("logged_out").Parse(loggedOutPageTemplateHTML))
var overwrittenSessionPageTemplate = template.Must(template.New("overwritten_session").Parse(overwrittenSessionPageTemplateHTML))

// LoggedOutPageData represents the data for the logged out notice
type LoggedOutPageData struct {
	Name     string
	LoginURL string
}

// OverwrittenSessionPageData represents the data for the replaced session notice
type OverwrittenSessionPageData struct {
	Name        string
	Username    string // empty when the new session could not be resolved
	ContinueURL string
}
