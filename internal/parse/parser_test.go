package parse

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupdigest/summary-platform/internal/model"
)

func TestParseStructuredResponse(t *testing.T) {
	raw := strings.Join([]string{
		"OVERVIEW: The group planned a weekend trip and settled on a budget.",
		"TOPICS:",
		"- Trip planning",
		"- Budget discussion",
		"ACTIONS:",
		"- Maria books the cabin",
		"- Everyone sends their share by Friday",
		"ANNOUNCEMENTS:",
		"- Departure moved to Saturday morning",
	}, "\n")

	p := NewParser()
	res := p.Parse(raw)

	assert.Equal(t, "The group planned a weekend trip and settled on a budget.", res.Overview)
	assert.Equal(t, []string{"Trip planning", "Budget discussion"}, res.KeyTopics)
	require.Len(t, res.ActionItems, 2)
	assert.Equal(t, "Maria books the cabin", res.ActionItems[0].Task)
	assert.Equal(t, model.PriorityMedium, res.ActionItems[0].Priority)
	assert.Equal(t, []string{"Departure moved to Saturday morning"}, res.Announcements)
}

func TestParseHeadersAreCaseInsensitive(t *testing.T) {
	raw := "overview: Plans came together.\ntopics:\n- Dinner"

	res := NewParser().Parse(raw)

	assert.Equal(t, "Plans came together.", res.Overview)
	assert.Equal(t, []string{"Dinner"}, res.KeyTopics)
}

func TestParseMultiLineOverviewCollapses(t *testing.T) {
	raw := "OVERVIEW:\nThe group talked about dinner.\nThey picked a restaurant.\nTOPICS:\n- Dinner plans"

	res := NewParser().Parse(raw)

	assert.Equal(t, "The group talked about dinner. They picked a restaurant.", res.Overview)
}

func TestParseTopicsSplitOnNewlinesOnly(t *testing.T) {
	// Topics may legitimately contain commas; they must not be split on them.
	raw := "TOPICS:\n- Flights, hotels, and car rental\n- Packing list"

	res := NewParser().Parse(raw)

	assert.Equal(t, []string{"Flights, hotels, and car rental", "Packing list"}, res.KeyTopics)
}

func TestParseTopicsCappedAtFive(t *testing.T) {
	raw := "TOPICS:\n- one1\n- two2\n- three\n- four4\n- five5\n- six66\n- seven"

	res := NewParser().Parse(raw)

	assert.Len(t, res.KeyTopics, 5)
}

func TestParseActionsSplitOnSemicolons(t *testing.T) {
	raw := "ACTIONS: book the venue; order the cake; send invites"

	res := NewParser().Parse(raw)

	require.Len(t, res.ActionItems, 3)
	assert.Equal(t, "book the venue", res.ActionItems[0].Task)
	assert.Equal(t, "send invites", res.ActionItems[2].Task)
}

func TestParseStripsBulletsAndNumbering(t *testing.T) {
	raw := "TOPICS:\n* Weekend hike\n• Carpooling\n1. Gear check"

	res := NewParser().Parse(raw)

	assert.Equal(t, []string{"Weekend hike", "Carpooling", "Gear check"}, res.KeyTopics)
}

func TestParseUnstructuredShortText(t *testing.T) {
	raw := "The chat was mostly about who brings what to the birthday party."

	res := NewParser().Parse(raw)

	assert.Equal(t, raw, res.Overview)
	assert.Contains(t, res.KeyTopics, "Party")
	assert.Contains(t, res.KeyTopics, "Birthday")
}

func TestParseUnstructuredLongTextTakesTwoSentences(t *testing.T) {
	first := "The conversation covered the upcoming school fundraiser in great detail"
	second := "Parents volunteered for booths and discussed donation targets"
	filler := strings.Repeat("More detail follows here. ", 30)
	raw := first + ". " + second + ". " + filler

	res := NewParser().Parse(raw)

	assert.Equal(t, first+". "+second+".", res.Overview)
}

func TestParseUnstructuredLongMultibyteTextKeepsValidUTF8(t *testing.T) {
	// No sentence breaks, so the overview is cut at the length bound; the
	// cut must land on a rune boundary.
	raw := "a" + strings.Repeat("日本語のながいはなし", 20)

	res := NewParser().Parse(raw)

	assert.True(t, utf8.ValidString(res.Overview))
	assert.NotEmpty(t, res.Overview)
	assert.LessOrEqual(t, len(res.Overview), maxUnstructuredChars)
}

func TestParseChatterWithoutDelimitersFallsToDefaultTopic(t *testing.T) {
	res := NewParser().Parse("lol ok sounds good see you then")

	assert.Equal(t, "lol ok sounds good see you then", res.Overview)
	assert.Equal(t, []string{"General discussion"}, res.KeyTopics)
}

func TestParseDelimitedPhrasesFallback(t *testing.T) {
	// No headers and no vocabulary hits, but real delimiters: short phrases
	// become topics.
	raw := "grabbing coffee later, picking a time, somewhere downtown"

	res := NewParser().Parse(raw)

	assert.Equal(t, []string{"grabbing coffee later", "picking a time", "somewhere downtown"}, res.KeyTopics)
}

func TestParseEmptyInputYieldsDefaults(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\n"} {
		res := NewParser().Parse(raw)

		assert.Equal(t, "Discussion in progress", res.Overview)
		assert.Equal(t, []string{"General discussion"}, res.KeyTopics)
		assert.Empty(t, res.ActionItems)
		assert.Empty(t, res.Announcements)
	}
}

func TestParseHeadersWithEmptyBodies(t *testing.T) {
	raw := "OVERVIEW:\nTOPICS:\nACTIONS:\nANNOUNCEMENTS:"

	res := NewParser().Parse(raw)

	assert.Equal(t, "Discussion in progress", res.Overview)
	assert.Equal(t, []string{"General discussion"}, res.KeyTopics)
	assert.NotNil(t, res.ActionItems)
	assert.NotNil(t, res.Announcements)
}

func TestParseNeverReturnsNilSlices(t *testing.T) {
	inputs := []string{
		"",
		"OVERVIEW: just a chat",
		"random text with no structure whatsoever",
		"TOPICS:\n- x",
	}
	for _, raw := range inputs {
		res := NewParser().Parse(raw)
		assert.NotNil(t, res.KeyTopics, "input %q", raw)
		assert.NotNil(t, res.ActionItems, "input %q", raw)
		assert.NotNil(t, res.Announcements, "input %q", raw)
	}
}
