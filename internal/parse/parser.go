// Package parse converts raw model output into structured summary fields.
//
// Model output is untrusted: the instructional template is a request, not
// a guarantee. The parser therefore degrades tier by tier instead of
// failing, and is total over any input string.
package parse

import (
	"strings"
	"unicode/utf8"

	"github.com/groupdigest/summary-platform/internal/model"
)

const (
	defaultOverview = "Discussion in progress"
	defaultTopic    = "General discussion"

	maxTopics            = 5
	maxFallbackPhrases   = 3
	maxUnstructuredChars = 300
	minPhraseLen         = 5
	maxPhraseLen         = 50
)

// topicVocabulary backs the keyword-matching tier when the model produced
// no usable TOPICS section.
var topicVocabulary = []string{
	"meeting", "dinner", "lunch", "schedule", "plan", "event", "party",
	"payment", "money", "travel", "trip", "work", "school", "project",
	"weekend", "birthday",
}

var sectionHeaders = []string{"overview:", "topics:", "actions:", "announcements:"}

// Result holds the fields extracted from one model response.
type Result struct {
	Overview      string
	KeyTopics     []string
	ActionItems   []model.ActionItem
	Announcements []string
}

// Parser extracts summary fields from raw generated text.
type Parser struct{}

// NewParser creates a parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse extracts a Result from raw. It never fails: every tier that comes
// up empty falls through to a cheaper one, bottoming out at fixed
// defaults. Participant highlights are not extracted here.
func (p *Parser) Parse(raw string) Result {
	sections, found := splitSections(raw)

	var res Result
	if found {
		res.Overview = collapseLines(sections["overview:"])
		res.KeyTopics = parseTopics(sections["topics:"], raw)
		res.ActionItems = parseActions(sections["actions:"])
		res.Announcements = parseListSection(sections["announcements:"], 3)
	} else {
		res.Overview = unstructuredOverview(raw)
		res.KeyTopics = keywordTopics(raw)
	}

	if strings.TrimSpace(res.Overview) == "" {
		res.Overview = defaultOverview
	}
	if len(res.KeyTopics) == 0 {
		res.KeyTopics = keywordTopics(raw)
	}
	if res.ActionItems == nil {
		res.ActionItems = []model.ActionItem{}
	}
	if res.Announcements == nil {
		res.Announcements = []string{}
	}
	return res
}

// splitSections scans line by line for the four known headers. A header
// claims every following line until the next header or end of text; text
// on the header line itself belongs to its body.
func splitSections(raw string) (map[string]string, bool) {
	sections := make(map[string]string)
	var current string
	var found bool
	var bodies = make(map[string][]string)

	for _, line := range strings.Split(raw, "\n") {
		header, rest := matchHeader(line)
		if header != "" {
			current = header
			found = true
			if strings.TrimSpace(rest) != "" {
				bodies[current] = append(bodies[current], rest)
			}
			continue
		}
		if current != "" {
			bodies[current] = append(bodies[current], line)
		}
	}

	if !found {
		return nil, false
	}
	for header, lines := range bodies {
		sections[header] = strings.Join(lines, "\n")
	}
	return sections, true
}

// matchHeader reports which known header a line contains, case
// insensitively, and the text following it on the same line.
func matchHeader(line string) (header, rest string) {
	lower := strings.ToLower(line)
	for _, h := range sectionHeaders {
		idx := strings.Index(lower, h)
		if idx < 0 {
			continue
		}
		return h, line[idx+len(h):]
	}
	return "", ""
}

// parseTopics splits a TOPICS body on newlines only — topics may contain
// commas legitimately. Falls back to keyword matching when nothing usable
// comes out.
func parseTopics(body, raw string) []string {
	var topics []string
	for _, line := range strings.Split(body, "\n") {
		entry := stripBullet(line)
		if len(entry) > 1 {
			topics = append(topics, entry)
		}
		if len(topics) == maxTopics {
			break
		}
	}
	if len(topics) == 0 {
		return keywordTopics(raw)
	}
	return topics
}

// parseActions splits an ACTIONS body on newlines or semicolons and maps
// each surviving entry to a task-only item at medium priority.
func parseActions(body string) []model.ActionItem {
	entries := parseListSection(body, 3)
	items := make([]model.ActionItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, model.ActionItem{Task: e, Priority: model.PriorityMedium})
	}
	return items
}

// parseListSection splits a section body on newlines or semicolons,
// stripping bullets and dropping entries at or under minLen characters.
func parseListSection(body string, minLen int) []string {
	var out []string
	for _, chunk := range strings.FieldsFunc(body, func(r rune) bool {
		return r == '\n' || r == ';'
	}) {
		entry := stripBullet(chunk)
		if len(entry) > minLen {
			out = append(out, entry)
		}
	}
	return out
}

// stripBullet removes leading bullet and numbering prefixes.
func stripBullet(line string) string {
	s := strings.TrimSpace(line)
	for _, prefix := range []string{"-", "*", "•"} {
		if strings.HasPrefix(s, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(s, prefix))
		}
	}
	for n := 1; n <= 5; n++ {
		prefix := string(rune('0'+n)) + "."
		if strings.HasPrefix(s, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(s, prefix))
		}
	}
	return s
}

// unstructuredOverview takes the whole text when short, otherwise the
// first two sentences.
func unstructuredOverview(raw string) string {
	text := strings.TrimSpace(raw)
	if len(text) <= maxUnstructuredChars {
		return text
	}
	sentences := strings.SplitN(text, ". ", 3)
	if len(sentences) >= 2 {
		return sentences[0] + ". " + sentences[1] + "."
	}
	// Cut on a rune boundary so a multi-byte character is never split.
	cut := maxUnstructuredChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// keywordTopics matches the fixed vocabulary against the raw text, then
// falls back to short delimited phrases, then to the default topic.
func keywordTopics(raw string) []string {
	lower := strings.ToLower(raw)

	var topics []string
	for _, kw := range topicVocabulary {
		if strings.Contains(lower, kw) {
			topics = append(topics, strings.ToUpper(kw[:1])+kw[1:])
		}
		if len(topics) == maxTopics {
			break
		}
	}
	if len(topics) > 0 {
		return topics
	}

	if phrases := delimitedPhrases(raw); len(phrases) > 0 {
		return phrases
	}
	return []string{defaultTopic}
}

// delimitedPhrases pulls short phrases out of text that actually contains
// delimiters. Undelimited text yields nothing: the whole response is not a
// topic.
func delimitedPhrases(raw string) []string {
	if !strings.ContainsAny(raw, ",;\n") {
		return nil
	}

	var phrases []string
	for _, chunk := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	}) {
		phrase := strings.TrimSpace(chunk)
		// Colon-bearing chunks are labels (stray section headers), not topics.
		if strings.Contains(phrase, ":") {
			continue
		}
		if len(phrase) >= minPhraseLen && len(phrase) <= maxPhraseLen {
			phrases = append(phrases, phrase)
		}
		if len(phrases) == maxFallbackPhrases {
			break
		}
	}
	return phrases
}

// collapseLines joins a multi-line body into one trimmed paragraph.
func collapseLines(body string) string {
	var parts []string
	for _, line := range strings.Split(body, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
