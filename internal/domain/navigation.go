package domain

import "strings"

// DefaultPath is the route shown when the shell first mounts.
const DefaultPath = "/dashboard"

// NavKind distinguishes entries of the navigation sidebar.
type NavKind string

const (
	NavHeader  NavKind = "header"
	NavDivider NavKind = "divider"
	NavPage    NavKind = "page"
)

// NavItem is one sidebar entry. Page items carry a segment and may nest children.
type NavItem struct {
	Kind     NavKind
	Title    string
	Segment  string
	Icon     string
	Children []NavItem
}

// Navigation is the sidebar of the dashboard shell.
var Navigation = []NavItem{
	{Kind: NavHeader, Title: "Main items"},
	{Kind: NavPage, Segment: "dashboard", Title: "Dashboard", Icon: "dashboard"},
	{Kind: NavPage, Segment: "chatbot", Title: "Chat Bot", Icon: "smart_toy"},
	{Kind: NavDivider},
	{Kind: NavHeader, Title: "Analytics"},
	{Kind: NavPage, Segment: "reports", Title: "Reports", Icon: "bar_chart", Children: []NavItem{
		{Kind: NavPage, Segment: "history", Title: "History", Icon: "description"},
		{Kind: NavPage, Segment: "traffic", Title: "Traffic", Icon: "description"},
	}},
	{Kind: NavPage, Segment: "integrations", Title: "Integrations", Icon: "layers"},
}

// accountPaths are routable but not listed in the sidebar.
var accountPaths = map[string]string{
	"/profile":  "Profile",
	"/login":    "Login",
	"/register": "Register",
}

// NormalizePath cleans a request path into the shell's route form.
func NormalizePath(p string) string {
	p = "/" + strings.Trim(strings.TrimSpace(p), "/")
	if p == "/" {
		return DefaultPath
	}
	return p
}

// KnownPath reports whether p is a route of the shell.
func KnownPath(p string) bool {
	_, ok := routeTitles()[NormalizePath(p)]
	return ok
}

// TitleFor returns the page title of a known route, or the path itself.
func TitleFor(p string) string {
	p = NormalizePath(p)
	if title, ok := routeTitles()[p]; ok {
		return title
	}
	return p
}

// Paths lists every routable path of the shell.
func Paths() []string {
	var out []string
	walkNav(Navigation, "", func(path string, _ NavItem) {
		out = append(out, path)
	})
	for p := range accountPaths {
		out = append(out, p)
	}
	return out
}

// Active reports whether item at prefix is the current path or one of its ancestors.
func Active(current, itemPath string) bool {
	current = NormalizePath(current)
	return current == itemPath || strings.HasPrefix(current, itemPath+"/")
}

func routeTitles() map[string]string {
	titles := make(map[string]string, 12)
	walkNav(Navigation, "", func(path string, item NavItem) {
		titles[path] = item.Title
	})
	for p, t := range accountPaths {
		titles[p] = t
	}
	return titles
}

func walkNav(items []NavItem, prefix string, fn func(path string, item NavItem)) {
	for _, item := range items {
		if item.Kind != NavPage {
			continue
		}
		path := prefix + "/" + item.Segment
		fn(path, item)
		walkNav(item.Children, path, fn)
	}
}

// PanelKind selects the content panel of the shell.
type PanelKind string

const (
	PanelChat        PanelKind = "chat"
	PanelPlaceholder PanelKind = "placeholder"
)

// PageContent is what the shell renders for the active route.
type PageContent struct {
	Kind  PanelKind `json:"kind"`
	Path  string    `json:"path"`
	Title string    `json:"title"`
	Text  string    `json:"text,omitempty"`
}

// ResolvePage maps the active route to its content panel: the chat widget for
// /chatbot and a placeholder dashboard panel for everything else.
func ResolvePage(p string) PageContent {
	p = NormalizePath(p)
	if p == "/chatbot" {
		return PageContent{Kind: PanelChat, Path: p, Title: TitleFor(p)}
	}
	return PageContent{
		Kind:  PanelPlaceholder,
		Path:  p,
		Title: TitleFor(p),
		Text:  "Dashboard content for " + p,
	}
}
