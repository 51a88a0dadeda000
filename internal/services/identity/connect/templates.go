package connect

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

type signInView struct {
	ReturnTo string
	Email    string
	Error    string
}

type errorView struct {
	Error            string
	ErrorDescription string
}
