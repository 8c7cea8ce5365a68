package report

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vid2doc/vid2doc"
)

const videoURL = "https://www.youtube.com/watch?v=Mn_9W1nCFLo"

func sampleDoc(dir string) vid2doc.Document {
	frame := func(ms uint64) vid2doc.Frame {
		return vid2doc.Frame{TimestampMs: ms, Path: filepath.Join(dir, "frames", fmt.Sprintf("frame_%09d.jpg", ms))}
	}
	return vid2doc.Document{
		Title: "Tom & Jerry <live>",
		URL:   videoURL,
		Sections: []vid2doc.Section{
			{Index: 1, StartMs: 0, EndMs: 10000, Text: "hello", Frames: []vid2doc.Frame{frame(0)}},
			{Index: 2, StartMs: 10000, EndMs: 30000, Text: "world", Frames: []vid2doc.Frame{frame(10000), frame(20000), frame(30000)}},
		},
	}
}

func parse(t *testing.T, html []byte) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestCompose(t *testing.T) {
	dir := t.TempDir()
	html, err := Composer{BaseDir: dir}.Compose(sampleDoc(dir))
	require.NoError(t, err)

	doc := parse(t, html)
	assert.Equal(t, "Vid2Doc: Tom & Jerry <live>", doc.Find("title").Text())
	assert.Equal(t, "Vid2Doc: Tom & Jerry <live>", doc.Find("h1").Text())
	src, _ := doc.Find("body > p > a").Attr("href")
	assert.Equal(t, videoURL, src)

	sections := doc.Find("div.section")
	require.Equal(t, 2, sections.Length())

	first := sections.Eq(0)
	assert.Equal(t, "hello", first.Find("p.text").Text())
	link, _ := first.Find("a.timestamp").Attr("href")
	assert.Equal(t, videoURL+"&t=0", link)
	assert.Equal(t, 1, first.Find("img").Length())

	second := sections.Eq(1)
	assert.Equal(t, "world", second.Find("p.text").Text())
	link, _ = second.Find("a.timestamp").Attr("href")
	assert.Equal(t, videoURL+"&t=10", link)
	assert.Equal(t, "0:10", second.Find("a.timestamp").Text())

	var srcs, alts []string
	second.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		alt, _ := s.Attr("alt")
		srcs = append(srcs, src)
		alts = append(alts, alt)
	})
	assert.Equal(t, []string{"frames/frame_000010000.jpg", "frames/frame_000020000.jpg", "frames/frame_000030000.jpg"}, srcs)
	assert.Equal(t, []string{"Frame at 0:10", "Frame at 0:20", "Frame at 0:30"}, alts)
}

func TestCompose_Idempotent(t *testing.T) {
	dir := t.TempDir()
	c := Composer{BaseDir: dir}

	a, err := c.Compose(sampleDoc(dir))
	require.NoError(t, err)
	b, err := c.Compose(sampleDoc(dir))
	require.NoError(t, err)

	assert.True(t, bytes.Equal(a, b))
}

func TestCompose_Embed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o644))
	doc := vid2doc.Document{
		Title:    "t",
		URL:      videoURL,
		Sections: []vid2doc.Section{{Index: 1, Text: "x", Frames: []vid2doc.Frame{{TimestampMs: 0, Path: path}}}},
	}

	html, err := Composer{BaseDir: dir, Embed: true}.Compose(doc)
	require.NoError(t, err)

	src, _ := parse(t, html).Find("img").Attr("src")
	assert.Equal(t, "data:image/jpeg;base64,anBlZw==", src)
}

func TestCompose_EmbedMissingFrame(t *testing.T) {
	dir := t.TempDir()

	_, err := Composer{BaseDir: dir, Embed: true}.Compose(sampleDoc(dir))

	var re *vid2doc.RenderError
	require.True(t, errors.As(err, &re))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCompose_NoSections(t *testing.T) {
	html, err := Composer{}.Compose(vid2doc.Document{Title: "quiet", URL: videoURL})
	require.NoError(t, err)

	assert.Zero(t, parse(t, html).Find("div.section").Length())
}

func TestMarkdown(t *testing.T) {
	dir := t.TempDir()
	c := Composer{BaseDir: dir}
	doc := sampleDoc(dir)
	doc.Title = "Launch Recap"
	html, err := c.Compose(doc)
	require.NoError(t, err)

	md, err := c.Markdown(html)
	require.NoError(t, err)

	out := string(md)
	assert.Contains(t, out, "# Vid2Doc: Launch Recap")
	assert.Contains(t, out, "## Section 2")
	assert.Contains(t, out, "world")
}

func TestTimestampLink(t *testing.T) {
	tests := []struct {
		url     string
		seconds uint64
		want    string
	}{
		{"https://www.youtube.com/watch?v=abc", 42, "https://www.youtube.com/watch?v=abc&t=42"},
		{"https://youtu.be/abc", 7, "https://youtu.be/abc?t=7"},
		{"https://youtu.be/abc", 0, "https://youtu.be/abc?t=0"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, TimestampLink(tt.url, tt.seconds))
		})
	}
}

func TestClock(t *testing.T) {
	assert.Equal(t, "0:00", Clock(0))
	assert.Equal(t, "0:09", Clock(9999))
	assert.Equal(t, "1:05", Clock(65000))
	assert.Equal(t, "1:00:01", Clock(3601000))
}
