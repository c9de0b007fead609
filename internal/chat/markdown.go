package chat

import (
	"html/template"
	"io"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/ashureev/finboard/internal/domain"
)

const rendererFlags = html.CommonFlags |
	html.HrefTargetBlank |
	html.NoopenerLinks |
	html.NoreferrerLinks |
	html.Safelink |
	html.SkipHTML

// RenderMarkdown renders a bot message. Raw HTML in the source is dropped,
// links open in a new tab and fenced code keeps its language-* class.
func RenderMarkdown(src string) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := html.NewRenderer(html.RendererOptions{
		Flags:          rendererFlags,
		RenderNodeHook: tableHook,
	})
	//nolint:gosec // renderer skips raw HTML and unsafe link schemes.
	return template.HTML(markdown.ToHTML([]byte(src), p, r))
}

func tableHook(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	if _, ok := node.(*ast.Table); !ok {
		return ast.GoToNext, false
	}
	if entering {
		_, _ = io.WriteString(w, `<table class="markdown-table">`)
	} else {
		_, _ = io.WriteString(w, "</table>\n")
	}
	return ast.GoToNext, true
}

// RenderedMessage is a chat message with its display HTML. Only bot messages
// are rendered as markdown; user text is left to the template to escape.
type RenderedMessage struct {
	domain.ChatMessage
	HTML template.HTML `json:"html,omitempty"`
}

// RenderMessages renders every bot message of msgs.
func RenderMessages(msgs []domain.ChatMessage) []RenderedMessage {
	out := make([]RenderedMessage, len(msgs))
	for i, m := range msgs {
		out[i] = RenderedMessage{ChatMessage: m}
		if m.IsBot {
			out[i].HTML = RenderMarkdown(m.Text)
		}
	}
	return out
}
