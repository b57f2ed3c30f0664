package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"daily-digest/internal/model"
)

const (
	summaryTemperature   = 0.3
	summaryMaxTokens     = 300
	keyPointsTemperature = 0.3
	keyPointsMaxTokens   = 400
	digestTemperature    = 0.5
	digestMaxTokens      = 2000
	maxKeyPoints         = 5
)

func summarySystem(maxWords int) string {
	if maxWords <= 0 {
		maxWords = 200
	}
	return fmt.Sprintf("You are a skilled content summarizer. Create concise, informative summaries that capture the key information. Maximum %d words.", maxWords)
}

func summaryUser(text string) string {
	return "Summarize this content:\n\n" + clip(text)
}

const keyPointsSystem = `Extract 3-5 key points from the content. Return a JSON object of the form {"points": ["...", "..."]}.`

const digestSystem = "You are creating a daily digest. Format it in clean markdown with clear sections. Be concise but informative."

func digestUser(s model.DigestSections) string {
	b, _ := json.MarshalIndent(s, "", "  ")
	return "Write a short overview paragraph for a daily digest built from these sections:\n" + string(b)
}

// ParseKeyPoints accepts a JSON array of strings or an object with a
// "points" or "key_points" array, optionally wrapped in markdown fences.
// Anything else yields an empty slice.
func ParseKeyPoints(raw string) []string {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	var list []string
	if err := json.Unmarshal([]byte(body), &list); err != nil {
		var obj struct {
			Points    []string `json:"points"`
			KeyPoints []string `json:"key_points"`
		}
		if err := json.Unmarshal([]byte(body), &obj); err != nil {
			return []string{}
		}
		list = obj.Points
		if len(list) == 0 {
			list = obj.KeyPoints
		}
	}

	out := make([]string, 0, maxKeyPoints)
	for _, p := range list {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
		if len(out) == maxKeyPoints {
			break
		}
	}
	return out
}
