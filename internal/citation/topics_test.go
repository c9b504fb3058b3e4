package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferTopic_StatutePlusKeyword(t *testing.T) {
	// Given: "1090" contributes a statute signal and a keyword signal,
	// "conflict" adds another keyword signal
	query := "does 1090 create a conflict for the board member"
	parsed := Parse(query)

	// Then: two or more signals infer conflicts_of_interest
	assert.Equal(t, TopicConflicts, InferTopic(query, parsed))
}

func TestInferTopic_SingleSignalReturnsNone(t *testing.T) {
	// Given: "contribution" alone is one signal point
	query := "is this payment a contribution"
	parsed := Parse(query)

	assert.Empty(t, InferTopic(query, parsed))
}

func TestInferTopic_RegulationRanges(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"conflicts regulation range", "Regulation 18702 disqualification rules", TopicConflicts},
		{"campaign regulation range", "Regulation 18215 contribution definition", TopicCampaignFinance},
		{"gifts regulation range", "Regulation 18730 gift limits", TopicGifts},
		{"lobbying regulation range", "Regulation 18610 lobbyist registration", TopicLobbying},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := Parse(tt.query)
			assert.Equal(t, tt.want, InferTopic(tt.query, parsed))
		})
	}
}

func TestInferTopic_NoSignals(t *testing.T) {
	query := "general question about public officials"
	assert.Empty(t, InferTopic(query, Parse(query)))
}

func TestInferTopic_TieBreakAlphabetical(t *testing.T) {
	// Given: two keyword signals each for campaign_finance and lobbying
	query := "campaign committee hired a lobbyist for lobbying"
	parsed := Parse(query)

	// Then: the tie at the maximum resolves to the alphabetically
	// smallest topic label
	assert.Equal(t, TopicCampaignFinance, InferTopic(query, parsed))
}

func TestInferTopic_KeywordStemsMatchSubstrings(t *testing.T) {
	// "disqualif" matches "disqualified", "recus" matches "recusal"
	query := "must the member be disqualified or is recusal enough"
	parsed := Parse(query)

	assert.Equal(t, TopicConflicts, InferTopic(query, parsed))
}
