package extractor

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type pageMeta struct {
	title         string
	author        string
	publishedTime *time.Time
}

var publishedTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func readMeta(body []byte) (pageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageMeta{}, fmt.Errorf("parse HTML: %w", err)
	}

	meta := pageMeta{
		title: firstNonEmpty(
			metaContent(doc, `meta[property="og:title"]`),
			metaContent(doc, `meta[name="twitter:title"]`),
			doc.Find("head title").First().Text(),
		),
		author: firstNonEmpty(
			metaContent(doc, `meta[name="author"]`),
			metaContent(doc, `meta[property="article:author"]`),
		),
	}

	published := firstNonEmpty(
		metaContent(doc, `meta[property="article:published_time"]`),
		metaContent(doc, `meta[name="date"]`),
		doc.Find("time[datetime]").First().AttrOr("datetime", ""),
	)
	if published != "" {
		meta.publishedTime = parsePublishedTime(published)
	}

	return meta, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

func parsePublishedTime(value string) *time.Time {
	for _, layout := range publishedTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
