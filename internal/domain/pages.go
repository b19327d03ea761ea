package domain

// TrackedPage describes one page the counter aggregates per-page views for
type TrackedPage struct {
	Page        string `json:"page"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
}

// TrackedPages is the registry of pages reported by the front end. Events for
// unknown pages still count toward totals but are folded into "other".
var TrackedPages = []TrackedPage{
	{Page: "home", Name: "Home Page", Path: "/"},
	{Page: "candidates", Name: "Candidates Page", Path: "/candidates"},
	{Page: "members", Name: "Members Page", Path: "/members"},
	{Page: "complaints", Name: "Complaints Page", Path: "/complaints"},
	{Page: "messages", Name: "Messages Page", Path: "/messages"},
	{Page: "about", Name: "About Page", Path: "/about"},
	{Page: "contact", Name: "Contact Page", Path: "/contact"},
}

// DefaultPage is used when an event does not name a page
const DefaultPage = "home"

// OtherPage collects events for pages outside the registry
const OtherPage = "other"

// PageName returns the display name for a page id
func PageName(page string) string {
	for _, p := range TrackedPages {
		if p.Page == page {
			return p.Name
		}
	}
	return "Other"
}

// NormalizePage maps an incoming page id onto the registry
func NormalizePage(page string) string {
	if page == "" {
		return DefaultPage
	}
	for _, p := range TrackedPages {
		if p.Page == page {
			return page
		}
	}
	return OtherPage
}
