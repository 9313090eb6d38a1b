package routing

import (
	"regexp"
	"strings"
)

// Resolved deepseek model ids.
const (
	ModelChat = "deepseek-chat"
	ModelV3   = "deepseek-v3"
	ModelR1   = "deepseek-r1"
)

// Decision is a classifier verdict with its confidence and the concatenated
// explanations of every heuristic that fired.
type Decision struct {
	Model      string
	Confidence float64
	Rationale  string
}

var r1Keywords = []string{
	"step by step", "step-by-step", "show your reasoning", "prove",
	"derive", "analyze deeply", "chain of reasoning",
	"math problem", "equation", "combinatorics", "probability",
	"why does this fail", "debug this algorithm",
}

var v3Keywords = []string{
	"api", "endpoint", "http", "rest", "graphql",
	"sql", "schema", "database", "index",
	"json", "yaml", "docker", "kubernetes", "k8s",
	"system design", "architecture", "microservice",
	"time complexity", "big o", "optimize the algorithm",
	"c#", "python", "java", "typescript", "javascript", "go", "rust",
	"leetcode", "binary tree", "graph", "dynamic programming",
}

var chatKeywords = []string{
	"explain like i'm five", "eli5", "in simple terms",
	"summarize", "tl;dr",
	"rewrite", "rephrase", "shorten", "make it shorter", "make it longer",
	"email", "subject line", "social media", "tweet", "post",
	"translate", "correct my grammar", "improve wording",
}

var codeyChars = regexp.MustCompile(`[{}();=<>\[\]]`)

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Classify scores the prompt against the three signal groups and the
// length/structure heuristics and picks the deepseek model to call.
// Ties resolve in chat, v3, r1 order. A best score of 0.5 or less means no
// strong signal fired; the verdict then falls back to chat at confidence 0.2.
func Classify(prompt string) Decision {
	text := strings.ToLower(prompt)

	var scoreChat, scoreV3, scoreR1 float64
	var reasons []string

	if containsAny(text, r1Keywords) {
		scoreR1 += 2.0
		reasons = append(reasons, "Reasoning keywords found → favor R1.")
	}
	if containsAny(text, v3Keywords) {
		scoreV3 += 2.0
		reasons = append(reasons, "Technical / coding keywords → favor V3.")
	}
	if containsAny(text, chatKeywords) {
		scoreChat += 2.0
		reasons = append(reasons, "Summarization / simple explanation → favor Chat.")
	}

	hasCodeyChars := codeyChars.MatchString(text)
	length := len(text)

	switch {
	case length < 80 && !hasCodeyChars:
		scoreChat += 1.0
		reasons = append(reasons, "Short, casual prompt → Chat.")
	case length > 300 && hasCodeyChars:
		scoreV3 += 1.0
		reasons = append(reasons, "Long + code-like → V3.")
	case length > 300 && !hasCodeyChars:
		scoreR1 += 0.5
		scoreV3 += 0.5
		reasons = append(reasons, "Long text, ambiguous between V3 and R1.")
	}

	bestModel := ModelChat
	bestScore := scoreChat
	if scoreV3 > bestScore {
		bestModel, bestScore = ModelV3, scoreV3
	}
	if scoreR1 > bestScore {
		bestModel, bestScore = ModelR1, scoreR1
	}

	const maxPossible = 3.0
	confidence := bestScore / maxPossible
	if confidence > 1.0 {
		confidence = 1.0
	}

	if bestScore <= 0.5 {
		bestModel = ModelChat
		confidence = 0.2
		reasons = append(reasons, "Prompt too broad / no strong signals → low confidence; default to Chat.")
	}

	rationale := "Heuristic routing applied."
	if len(reasons) > 0 {
		rationale = strings.Join(reasons, " ")
	}

	return Decision{Model: bestModel, Confidence: confidence, Rationale: rationale}
}

// ConfidenceLabel buckets a confidence score for UI display.
func ConfidenceLabel(score float64) string {
	if score >= 0.75 {
		return "HIGH"
	}
	if score >= 0.4 {
		return "MEDIUM"
	}
	return "LOW"
}
