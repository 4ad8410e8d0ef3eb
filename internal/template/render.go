// Package template provides placeholder rendering for AI prompts and
// webhook bodies.
//
// Supported incident variables:
//
//	{{incident.id}}, {{incident.title}}, {{incident.description}},
//	{{incident.source}}, {{incident.category}}, {{incident.severity}},
//	{{incident.location}}, {{incident.published_date}}, {{incident.url}},
//	{{incident.tags}}
//
// Callers may pass extra variables, written as {{name}} in the body.
package template

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/cyberwatch-india/backend/internal/model"
)

// IncidentData - incident fields available to templates
type IncidentData struct {
	ID            string
	Title         string
	Description   string
	Source        string
	Category      string
	Severity      string
	Location      string
	PublishedDate time.Time
	URL           string
	Tags          []string
}

// IncidentDataFromModel - builds IncidentData from a stored incident
func IncidentDataFromModel(inc model.Incident) IncidentData {
	url := ""
	if inc.URL != nil {
		url = *inc.URL
	}
	return IncidentData{
		ID:            inc.ID,
		Title:         inc.Title,
		Description:   inc.Description,
		Source:        inc.Source,
		Category:      inc.Category,
		Severity:      inc.Severity,
		Location:      inc.Location,
		PublishedDate: inc.PublishedDate,
		URL:           url,
		Tags:          inc.Tags,
	}
}

// RenderBody - replaces template variables with their values
//
// With a nil incident every {{incident.*}} variable renders as an empty string.
func RenderBody(body string, incident *IncidentData, vars map[string]string) string {
	pairs := make([]string, 0, 20+2*len(vars))

	if incident != nil {
		published := ""
		if !incident.PublishedDate.IsZero() {
			published = incident.PublishedDate.Format(time.RFC3339)
		}
		pairs = append(pairs,
			"{{incident.id}}", incident.ID,
			"{{incident.title}}", incident.Title,
			"{{incident.description}}", incident.Description,
			"{{incident.source}}", incident.Source,
			"{{incident.category}}", incident.Category,
			"{{incident.severity}}", incident.Severity,
			"{{incident.location}}", incident.Location,
			"{{incident.published_date}}", published,
			"{{incident.url}}", incident.URL,
			"{{incident.tags}}", strings.Join(incident.Tags, ", "),
		)
	} else {
		pairs = append(pairs,
			"{{incident.id}}", "",
			"{{incident.title}}", "",
			"{{incident.description}}", "",
			"{{incident.source}}", "",
			"{{incident.category}}", "",
			"{{incident.severity}}", "",
			"{{incident.location}}", "",
			"{{incident.published_date}}", "",
			"{{incident.url}}", "",
			"{{incident.tags}}", "",
		)
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", vars[k])
	}

	return strings.NewReplacer(pairs...).Replace(body)
}

// JSONEscape escapes a value for embedding inside a JSON string literal
// of a webhook body template.
func JSONEscape(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return ""
	}
	out := strings.TrimSuffix(buf.String(), "\n")
	return out[1 : len(out)-1]
}

// JSONEscaped returns a copy with every text field, tags included, escaped
// by JSONEscape.
func (d IncidentData) JSONEscaped() IncidentData {
	tags := make([]string, len(d.Tags))
	for i, tag := range d.Tags {
		tags[i] = JSONEscape(tag)
	}
	return IncidentData{
		ID:            JSONEscape(d.ID),
		Title:         JSONEscape(d.Title),
		Description:   JSONEscape(d.Description),
		Source:        JSONEscape(d.Source),
		Category:      JSONEscape(d.Category),
		Severity:      JSONEscape(d.Severity),
		Location:      JSONEscape(d.Location),
		PublishedDate: d.PublishedDate,
		URL:           JSONEscape(d.URL),
		Tags:          tags,
	}
}
