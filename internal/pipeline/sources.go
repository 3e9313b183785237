package pipeline

import (
	"regexp"
	"strings"

	"deepresearch/internal/model"
)

var (
	bracketCitation = regexp.MustCompile(`^\[(\d+)\]\s*(.+)$`)
	numberCitation  = regexp.MustCompile(`^(\d+)[.)]\s*(.+)$`)
	urlPattern      = regexp.MustCompile(`https?://\S+`)
)

// ExtractSources parses the trailing "Sources" section of a report into an
// ordered source list. Lines must look like "[1] title - url" or
// "1. title - url"; anything else is skipped.
func ExtractSources(report string) []model.Source {
	if report == "" {
		return nil
	}

	idx := strings.LastIndex(strings.ToLower(report), "sources")
	if idx == -1 {
		return nil
	}

	var sources []model.Source
	for _, line := range strings.Split(report[idx:], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(line, "-* "))

		match := bracketCitation.FindStringSubmatch(line)
		if match == nil {
			match = numberCitation.FindStringSubmatch(line)
		}
		if match == nil {
			continue
		}

		citation := strings.TrimSpace(match[2])
		url := ""
		if raw := urlPattern.FindString(citation); raw != "" {
			url = strings.TrimRight(raw, ").,]>")
		}

		title := citation
		if url != "" {
			title = strings.TrimSpace(strings.ReplaceAll(title, url, ""))
			title = strings.TrimRight(title, " -(")
		}

		sources = append(sources, model.Source{
			URL:     url,
			Title:   title,
			Snippet: citation,
		})
	}
	return sources
}
