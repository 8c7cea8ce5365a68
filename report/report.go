// Package report renders merged sections into the vid2doc HTML document.
package report

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"vid2doc/vid2doc"
)

//go:embed report.html.tmpl
var pageTemplate string

var tmpl = template.Must(template.New("report").Option("missingkey=error").Parse(pageTemplate))

type (
	page struct {
		Title    string
		URL      string
		Sections []sectionView
	}

	sectionView struct {
		Index  int
		Start  string
		Link   string
		Text   string
		Frames []frameView
	}

	frameView struct {
		Src template.URL
		Alt string
	}
)

// Composer renders documents. Frame images are linked relative to BaseDir,
// or inlined as data URIs when Embed is set.
type Composer struct {
	BaseDir string
	Embed   bool
}

var (
	_ vid2doc.Composer         = Composer{}
	_ vid2doc.MarkdownComposer = Composer{}
)

func (c Composer) Compose(doc vid2doc.Document) ([]byte, error) {
	p := page{
		Title:    "Vid2Doc: " + doc.Title,
		URL:      doc.URL,
		Sections: make([]sectionView, len(doc.Sections)),
	}
	for n, s := range doc.Sections {
		frames := make([]frameView, len(s.Frames))
		for i, f := range s.Frames {
			src, err := c.imageSrc(f.Path)
			if err != nil {
				return nil, &vid2doc.RenderError{Path: f.Path, Err: err}
			}
			frames[i] = frameView{
				Src: src,
				Alt: "Frame at " + Clock(f.TimestampMs),
			}
		}
		p.Sections[n] = sectionView{
			Index:  s.Index,
			Start:  Clock(s.StartMs),
			Link:   TimestampLink(doc.URL, s.Seconds()),
			Text:   s.Text,
			Frames: frames,
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		return nil, &vid2doc.RenderError{Err: fmt.Errorf("executing template: %w", err)}
	}
	return buf.Bytes(), nil
}

// Markdown converts a rendered document to Markdown.
func (c Composer) Markdown(html []byte) ([]byte, error) {
	md, err := htmltomarkdown.ConvertString(string(html))
	if err != nil {
		return nil, &vid2doc.RenderError{Err: fmt.Errorf("converting to markdown: %w", err)}
	}
	return []byte(md), nil
}

func (c Composer) imageSrc(path string) (template.URL, error) {
	if c.Embed {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading frame: %w", err)
		}
		return template.URL("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)), nil
	}

	rel := path
	if c.BaseDir != "" {
		r, err := filepath.Rel(c.BaseDir, path)
		if err != nil {
			return "", fmt.Errorf("locating frame: %w", err)
		}
		rel = r
	}
	u := url.URL{Path: filepath.ToSlash(rel)}
	return template.URL(u.String()), nil
}

// TimestampLink points at the given second of the video.
func TimestampLink(videoURL string, seconds uint64) string {
	sep := "?"
	if strings.Contains(videoURL, "?") {
		sep = "&"
	}
	return videoURL + sep + "t=" + strconv.FormatUint(seconds, 10)
}

// Clock formats milliseconds as m:ss, or h:mm:ss past the hour.
func Clock(ms uint64) string {
	total := ms / 1000
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
