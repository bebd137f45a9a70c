package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shedview/shedview-api/internal/models"
)

// Upstream display names follow the shape
//
//	"<type> <class> - <name> [<weight> KG] [(<nickname>)]"
//
// e.g. "2X RACER - Sykes Slider 85 KG (Old Faithful)".
var (
	// A \b after "+" or "-" never matches, so the type token is
	// delimited by whitespace or end-of-string instead.
	boatTypeRe = regexp.MustCompile(`^\s*(\d+[Xx+\-])(?:\s+|$)`)
	weightRe   = regexp.MustCompile(`(?i)\b(\d+)\s*KG\b`)
	nicknameRe = regexp.MustCompile(`\(([^()]*)\)\s*$`)
	// Classification tokens are uppercase upstream; matching them
	// case-sensitively keeps "Club Tinnie" out of the classification.
	classRe      = regexp.MustCompile(`\b(RACER|CLUB)\b`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// tinnieMarkers are the raw-name phrases that classify a boat as a tinnie
// rather than a racing shell. Confirmed against current production data;
// adjust here if a club's upstream uses another phrase.
var tinnieMarkers = []string{"tinnie", "safety boat"}

// ParsedBoat is the structured form of an upstream display name.
type ParsedBoat struct {
	Name           string
	BoatType       string
	Classification string
	WeightKG       int
	Nickname       string
	Category       string
}

// ParseBoatName extracts the structured fields from a raw display name.
func ParseBoatName(raw string) ParsedBoat {
	parsed := ParsedBoat{Category: models.BoatCategoryRace}

	lower := strings.ToLower(raw)
	for _, marker := range tinnieMarkers {
		if strings.Contains(lower, marker) {
			parsed.Category = models.BoatCategoryTinnie
			break
		}
	}

	rest := strings.TrimSpace(raw)

	if m := nicknameRe.FindStringSubmatch(rest); m != nil {
		parsed.Nickname = collapseWhitespace(m[1])
		rest = strings.TrimSpace(rest[:len(rest)-len(m[0])])
	}

	if m := weightRe.FindStringSubmatch(rest); m != nil {
		if w, err := strconv.Atoi(m[1]); err == nil {
			parsed.WeightKG = w
		}
		rest = strings.TrimSpace(strings.Replace(rest, m[0], " ", 1))
	}

	if m := boatTypeRe.FindStringSubmatch(rest); m != nil {
		parsed.BoatType = strings.ToUpper(m[1])
		rest = strings.TrimSpace(rest[len(m[0]):])
	}

	if m := classRe.FindStringSubmatch(rest); m != nil {
		parsed.Classification = strings.ToUpper(m[1])
		rest = strings.TrimSpace(strings.Replace(rest, m[0], " ", 1))
	}

	parsed.Name = collapseWhitespace(strings.Trim(rest, " -"))
	return parsed
}

func collapseWhitespace(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// timeFormats are accepted upstream time layouts, tried in order.
var timeFormats = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3:04 pm", "3:04pm"}

// NormalizeTime converts an upstream time string to "HH:MM" 24-hour form.
// Returns false when the input matches no known layout.
func NormalizeTime(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("15:04"), true
		}
	}
	return "", false
}

// dateFormats are accepted upstream date layouts, tried in order.
var dateFormats = []string{"2006-01-02", "02/01/2006", "2006-01-02T15:04:05Z07:00"}

// NormalizeDate converts an upstream date string to "YYYY-MM-DD".
// Returns false when the input matches no known layout.
func NormalizeDate(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
