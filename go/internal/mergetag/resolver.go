// Package mergetag fills recognized {{placeholder}} tokens in message
// templates and strips the rest.
package mergetag

import (
	"regexp"
	"strings"

	"github.com/mcdev12/outreach/go/internal/models"
)

var (
	tokenPattern    = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]*)\s*\}\}`)
	leftoverPattern = regexp.MustCompile(`\{\{[^{}]*\}\}`)
)

// Values maps lowercase token names to their replacement text.
type Values map[string]string

// ValuesFor builds the recognized token set for a contact.
func ValuesFor(c models.Contact) Values {
	return Values{
		"first_name":        c.FirstName,
		"last_name":         c.LastName,
		"email":             c.Email,
		"phone":             c.Phone,
		"organization_name": c.OrganizationName,
		"company":           c.OrganizationName,
		"assignee_name":     c.AssigneeName,
		"pipeline_stage":    c.PipelineStage,
	}
}

// Resolve substitutes every recognized token and removes any other {{...}}
// token. Token names match case-insensitively.
func Resolve(template string, values Values) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	out := tokenPattern.ReplaceAllStringFunc(template, func(tok string) string {
		name := strings.ToLower(tokenPattern.FindStringSubmatch(tok)[1])
		return values[name]
	})
	// Malformed leftovers such as "{{ first name }}" never reach recipients.
	return leftoverPattern.ReplaceAllString(out, "")
}

// Message is a resolved subject and body pair.
type Message struct {
	Subject string
	Body    string
}

// ResolveFor resolves both parts of a template for a contact.
func ResolveFor(subject, body string, c models.Contact) Message {
	values := ValuesFor(c)
	return Message{
		Subject: Resolve(subject, values),
		Body:    Resolve(body, values),
	}
}
