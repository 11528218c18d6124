package kad

import (
	"regexp"
	"strings"
)

var (
	chronoItemRe  = regexp.MustCompile(`class="b-chrono-item js-chrono-item"`)
	caseDateRe    = regexp.MustCompile(`class="case-date"[^>]*>\s*([^<]+)<`)
	caseTypeRe    = regexp.MustCompile(`class="case-type"[^>]*>\s*([^<]+)<`)
	caseSubjectRe = regexp.MustCompile(`class="case-subject"[^>]*>\s*([^<]+)<`)
	publishRe     = regexp.MustCompile(`class="b-case-publish_info"[^>]*>\s*([^<]+)<`)
	docLinkRe     = regexp.MustCompile(`href="([^"]+)"[^>]*class="[^"]*js-case-result-text--doc_link`)
	docLinkAltRe  = regexp.MustCompile(`class="[^"]*js-case-result-text--doc_link[^"]*"[^>]*href="([^"]+)"`)
	hearingDivRe  = regexp.MustCompile(`(?s)<div class="b-instanceAdditional[^"]*"[^>]*>(.*?)</div>`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
)

// ParseCard extracts the latest chronology event and the next-hearing block
// from a case card page. It reports false when the page carries no
// chronology at all.
func ParseCard(page string) (Result, bool) {
	items := chronoItemRe.FindAllStringIndex(page, -1)
	if len(items) == 0 {
		return Result{}, false
	}

	// The first chronology item on the page is the latest event.
	latest := page[items[0][0]:]
	if len(items) > 1 {
		latest = page[items[0][0]:items[1][0]]
	}

	result := Result{
		EventDate:    firstGroup(caseDateRe, latest),
		EventTitle:   firstGroup(caseTypeRe, latest),
		EventAuthor:  firstGroup(caseSubjectRe, latest),
		EventPublish: strings.TrimSpace(strings.TrimPrefix(firstGroup(publishRe, latest), "Дата публикации:")),
		EventsCount:  len(items),
		DocLink:      docLink(latest),
	}

	if hearing, ok := parseHearingBlock(page); ok {
		result.HearingDate = hearing.Date
		result.HearingTime = hearing.Time
		result.HearingRoom = hearing.Room
	}

	return result, true
}

func parseHearingBlock(page string) (Hearing, bool) {
	for _, match := range hearingDivRe.FindAllStringSubmatch(page, -1) {
		if !strings.Contains(match[1], "redCalendar") {
			continue
		}
		if hearing, ok := ExtractHearing(stripTags(match[1])); ok {
			return hearing, true
		}
	}
	// Fallback: the inline "Следующее заседание" line elsewhere on the page.
	return ExtractNextHearingLine(stripTags(page))
}

func docLink(block string) string {
	if match := docLinkRe.FindStringSubmatch(block); match != nil {
		return match[1]
	}
	if match := docLinkAltRe.FindStringSubmatch(block); match != nil {
		return match[1]
	}
	return ""
}

func firstGroup(re *regexp.Regexp, text string) string {
	if match := re.FindStringSubmatch(text); match != nil {
		return strings.TrimSpace(match[1])
	}
	return ""
}

func stripTags(html string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(html, " "))
}
