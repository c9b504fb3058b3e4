package citation

import (
	"sort"
	"strconv"
	"strings"
)

// Topic labels in the FPPC opinion taxonomy.
const (
	TopicConflicts       = "conflicts_of_interest"
	TopicCampaignFinance = "campaign_finance"
	TopicGifts           = "gifts_honoraria"
	TopicLobbying        = "lobbying"
)

// statuteTopics maps each topic to the base statute numbers that signal it.
var statuteTopics = map[string]map[string]bool{
	TopicConflicts: toSet(
		"87100", "87101", "87102", "87103", "87104", "87105",
		"87200", "87201", "87202", "87203", "87206", "87207",
		"87300", "87301", "87302", "87302.3", "87302.6",
		"87400", "87450",
		"1090", "1091", "1092", "1093", "1094", "1095", "1096", "1097",
	),
	TopicCampaignFinance: toSet(
		"82015", "84200", "84201", "84202", "84203", "84204",
		"84211", "84300", "84301", "84302",
		"85100", "85101", "85200", "85201", "85300", "85301",
		"85302", "85303", "85304", "85305", "85306",
		"85500", "85601", "85700", "85800",
	),
	TopicGifts: toSet(
		"89501", "89502", "89503", "89506",
		"86201", "86202", "86203", "86204", "86205",
	),
	TopicLobbying: toSet(
		"86100", "86101", "86102", "86103", "86104", "86105",
		"86110", "86112", "86113", "86114", "86115", "86116",
	),
}

// regulationRange assigns regulation number sub-ranges to topics.
type regulationRange struct {
	lo, hi int
	topic  string
}

var regulationRanges = []regulationRange{
	{18700, 18707, TopicConflicts},
	{18215, 18225, TopicCampaignFinance},
	{18730, 18735, TopicGifts},
	{18610, 18618, TopicLobbying},
}

// keywordTopics maps each topic to keyword stems matched as
// case-insensitive substrings of the query.
var keywordTopics = map[string][]string{
	TopicConflicts: {
		"disqualif", "recus", "conflict", "1090", "self-deal",
		"financial interest", "abstain",
	},
	TopicCampaignFinance: {
		"contribution", "campaign", "expenditure", "donor",
		"committee", "election",
	},
	TopicGifts: {
		"gift", "honorari", "travel payment", "behest",
	},
	TopicLobbying: {
		"lobbying", "lobbyist", "lobbied",
	},
}

func toSet(items ...string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// InferTopic infers a topic from parsed citations and query keywords.
// Each matching base statute, in-range regulation number, and keyword
// substring contributes one signal point; the best topic is returned only
// when it accumulates at least two points. Ties at the maximum resolve to
// the alphabetically smallest topic label.
func InferTopic(query string, parsed ParsedQuery) string {
	scores := make(map[string]int)
	queryLower := strings.ToLower(query)

	for _, cite := range parsed.GovCode {
		for topic, statutes := range statuteTopics {
			if statutes[cite.Base] {
				scores[topic]++
			}
		}
	}

	for _, cite := range parsed.Regulations {
		base, err := strconv.Atoi(cite.Base)
		if err != nil {
			continue
		}
		for _, r := range regulationRanges {
			if base >= r.lo && base <= r.hi {
				scores[r.topic]++
				break
			}
		}
	}

	for topic, keywords := range keywordTopics {
		for _, kw := range keywords {
			if strings.Contains(queryLower, kw) {
				scores[topic]++
			}
		}
	}

	if len(scores) == 0 {
		return ""
	}

	topics := make([]string, 0, len(scores))
	for topic := range scores {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	best := topics[0]
	for _, topic := range topics[1:] {
		if scores[topic] > scores[best] {
			best = topic
		}
	}
	if scores[best] >= 2 {
		return best
	}
	return ""
}
