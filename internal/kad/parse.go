package kad

import (
	"regexp"
	"strings"
)

var (
	hearingDateTimeRe = regexp.MustCompile(`(\d{2}\.\d{2}\.\d{4}),\s*(\d{2}:\d{2})`)
	hearingRoomRe     = regexp.MustCompile(`к\.(\d+)`)
	hearingHallRe     = regexp.MustCompile(`Зал[^№]*№\s*(\d+)`)
	nextHearingRe     = regexp.MustCompile(`Следующее заседание:\s*(\d{2}\.\d{2}\.\d{4}),\s*(\d{2}:\d{2})(?:\s*,\s*к\.(\d+))?`)
)

// Hearing is the next-hearing block extracted from a case card.
type Hearing struct {
	Date string
	Time string
	Room string
}

// ExtractHearing pulls the next-hearing date, time and room out of the text
// of a hearing block. The room is optional; either the courtroom shorthand
// ("к.316") or the full hall form ("Зал ... № 316") is recognised.
func ExtractHearing(text string) (Hearing, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Hearing{}, false
	}

	match := hearingDateTimeRe.FindStringSubmatch(text)
	if match == nil {
		return Hearing{}, false
	}

	hearing := Hearing{Date: match[1], Time: match[2]}
	if room := hearingRoomRe.FindStringSubmatch(text); room != nil {
		hearing.Room = room[1]
	} else if hall := hearingHallRe.FindStringSubmatch(text); hall != nil {
		hearing.Room = hall[1]
	}
	return hearing, true
}

// ExtractNextHearingLine parses the inline "Следующее заседание: ..." form
// used as a fallback when the structured block is absent.
func ExtractNextHearingLine(text string) (Hearing, bool) {
	match := nextHearingRe.FindStringSubmatch(text)
	if match == nil {
		return Hearing{}, false
	}
	return Hearing{Date: match[1], Time: match[2], Room: match[3]}, true
}

// Markers the registry serves instead of a case card when access is denied.
const (
	blockedMarker      = "Доступ к сервису ограничен"
	subscriptionMarker = "Вы можете оформить подписку на 40 дел"
)

// PageBlocked reports whether the returned page is an anti-automation block
// or a subscription limit instead of the case card.
func PageBlocked(page string) bool {
	return strings.Contains(page, blockedMarker) || strings.Contains(page, subscriptionMarker)
}
