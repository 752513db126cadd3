package document

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var (
	mdOnce sync.Once
	md     goldmark.Markdown
)

// markdown returns the shared goldmark instance. Raw HTML in message
// bodies is dropped since goldmark runs without WithUnsafe.
func markdown() goldmark.Markdown {
	mdOnce.Do(func() {
		md = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		)
	})
	return md
}

func renderBody(body string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown().Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; max-width: 820px; margin: 2em auto; color: #1f2328; }
h1 { font-size: 1.5em; margin-bottom: 0.2em; }
.summary { color: #6b7280; font-size: 0.9em; margin-bottom: 1.5em; }
.entry { border-left: 4px solid; padding: 0.3em 0.8em; margin: 0.6em 0; }
.meta { font-size: 0.85em; }
.sender { font-weight: 600; }
time { color: #6b7280; margin-left: 0.5em; }
.body p { margin: 0.3em 0; }
img { max-width: 100%; height: auto; display: block; margin: 0.4em 0; }
.attachment { font-family: monospace; }
.unavailable { color: #b91c1c; font-style: italic; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="summary">{{.Summary}}</p>
{{range .Items}}<div class="entry" style="border-left-color: {{.Color}}">
<div class="meta"><span class="sender" style="color: {{.Color}}">{{.Sender}}</span><time>{{.Time}}</time></div>
{{if .Body}}<div class="body">{{.Body}}</div>
{{end}}{{if .Image}}<img src="{{.Image}}" alt="{{.AssetName}}" width="{{.Width}}" height="{{.Height}}">
{{end}}{{if .Reference}}<div class="attachment">[attachment: {{.AssetName}}, {{.AssetSize}}]</div>
{{end}}{{if .Unavailable}}<div class="unavailable">[{{.Unavailable}}]</div>
{{end}}</div>
{{end}}</body>
</html>
`))

type htmlPage struct {
	Title   string
	Summary string
	Items   []htmlItem
}

type htmlItem struct {
	Sender      string
	Color       template.CSS
	Time        string
	Body        template.HTML
	Image       template.URL
	Width       int
	Height      int
	Reference   bool
	AssetName   string
	AssetSize   string
	Unavailable string
}

func renderHTML(v view) ([]byte, error) {
	page := htmlPage{Title: v.Title, Summary: v.Summary}
	for _, it := range v.Items {
		hi := htmlItem{
			Sender:    it.Sender,
			Color:     template.CSS(it.Color),
			Time:      it.Time,
			AssetName: it.AssetName,
			AssetSize: it.AssetSize,
		}
		switch it.State {
		case StateNone:
			body, err := renderBody(it.Body)
			if err != nil {
				return nil, fmt.Errorf("render body: %w", err)
			}
			hi.Body = body
		case StateInline:
			hi.Image = template.URL("data:" + it.MimeType + ";base64," + base64.StdEncoding.EncodeToString(it.Payload))
			hi.Width, hi.Height = it.Width, it.Height
		case StateReference:
			hi.Reference = true
		case StateUnavailable:
			hi.Unavailable = placeholder(it.AssetName)
		}
		page.Items = append(page.Items, hi)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return buf.Bytes(), nil
}
