package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/newsmelody/api/internal/client"
	"github.com/newsmelody/api/internal/model"
)

// suitabilityThreshold is the minimum 0-100 score for a news item to be
// turned into a song.
const suitabilityThreshold = 70

// NewsAnalyzer defines the text-generation capabilities the pipeline needs:
// judging a news item, restructuring it and writing the song lyrics.
type NewsAnalyzer interface {
	Evaluate(ctx context.Context, news model.NewsItem) (*model.Evaluation, error)
	Structure(ctx context.Context, news model.NewsItem) (*model.StructuredNews, error)
	GenerateLyrics(ctx context.Context, news model.NewsItem, structured *model.StructuredNews) (string, error)
}

// NewsService implements NewsAnalyzer on top of Groq AI
type NewsService struct {
	groqClient *client.GroqClient
}

// NewNewsService creates a new news service with Groq client
func NewNewsService(groqClient *client.GroqClient) *NewsService {
	return &NewsService{
		groqClient: groqClient,
	}
}

// Evaluate scores a news item for suitability. Items below the threshold get
// Suitable=false with the model's reason; that is a verdict, not an error.
func (s *NewsService) Evaluate(ctx context.Context, news model.NewsItem) (*model.Evaluation, error) {
	// Use mock response if client is not configured
	if s.groqClient == nil || !s.groqClient.IsConfigured() {
		return s.evaluateMock(news), nil
	}

	systemPrompt := s.buildSystemPrompt()
	userPrompt := s.buildEvaluatePrompt(news)

	response, err := s.groqClient.ChatCompletion(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("AI evaluation failed: %w", err)
	}

	return s.parseEvaluateResponse(response)
}

// Structure converts a news item into the four-part representation the song
// sections are written from.
func (s *NewsService) Structure(ctx context.Context, news model.NewsItem) (*model.StructuredNews, error) {
	if s.groqClient == nil || !s.groqClient.IsConfigured() {
		return s.structureMock(news), nil
	}

	systemPrompt := s.buildSystemPrompt()
	userPrompt := s.buildStructurePrompt(news)

	response, err := s.groqClient.ChatCompletion(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("AI structuring failed: %w", err)
	}

	return s.parseStructureResponse(response)
}

// GenerateLyrics writes one song from the structured news: verses carry the
// facts, the pre-chorus their meaning, the chorus the impact and the bridge
// the open question, assembled under bracketed section markers.
func (s *NewsService) GenerateLyrics(ctx context.Context, news model.NewsItem, structured *model.StructuredNews) (string, error) {
	if s.groqClient == nil || !s.groqClient.IsConfigured() {
		return s.lyricsMock(structured), nil
	}

	systemPrompt := s.buildSystemPrompt()
	userPrompt := s.buildLyricsPrompt(news, structured)

	response, err := s.groqClient.ChatCompletion(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("AI lyrics generation failed: %w", err)
	}

	sections, err := s.parseLyricsResponse(response)
	if err != nil {
		return "", fmt.Errorf("failed to parse AI response: %w", err)
	}

	return assembleLyrics(sections), nil
}

func (s *NewsService) buildSystemPrompt() string {
	return `You are a songwriter who turns news into gentle, approachable pop songs.
You explain current events plainly, avoid sensationalism and never assert more than the source supports.
Always output your response as valid JSON in the exact format requested.
Do not include any text outside the JSON structure.`
}

func (s *NewsService) buildEvaluatePrompt(news model.NewsItem) string {
	return fmt.Sprintf(`Evaluate whether the following news item is suitable to be turned into a song.

Title: %s
Source: %s
Date: %s

%s

Score it 0-100 weighing social importance, relevance to a young audience,
certainty of the information, and (negatively) sensationalism.
A score of %d or higher means suitable.

Output as JSON: {"is_suitable": true, "score": 82.5, "reason": "one or two sentences"}`,
		news.Title, news.Source, news.Date, news.Body, suitabilityThreshold)
}

func (s *NewsService) buildStructurePrompt(news model.NewsItem) string {
	return fmt.Sprintf(`Restructure the following news item into four parts:
fact (what happened), meaning (why it matters), impact (how lives change), question (what remains open).

Title: %s
Source: %s

%s

Each part needs a short summary (one line) and a detail (two to four sentences).

Output as JSON: {"fact": {"summary": "...", "detail": "..."}, "meaning": {...}, "impact": {...}, "question": {...}}`,
		news.Title, news.Source, news.Body)
}

func (s *NewsService) buildLyricsPrompt(news model.NewsItem, structured *model.StructuredNews) string {
	return fmt.Sprintf(`Write song lyrics from this structured news item.

Title: %s
Fact: %s
Meaning: %s
Impact: %s
Question: %s

Rules:
- verses sing the fact, the pre-chorus its meaning, the chorus the impact, the bridge the open question
- 4-8 short singable lines per section
- soften claims ("might", "could"); no absolute assertions
- intro and outro are one or two spoken-feel lines

Output as JSON: {"intro": ["..."], "verse1": ["..."], "pre_chorus": ["..."], "chorus": ["..."], "verse2": ["..."], "bridge": ["..."], "outro": ["..."]}`,
		news.Title, structured.Fact.Detail, structured.Meaning.Detail, structured.Impact.Detail, structured.Question.Detail)
}

func (s *NewsService) parseEvaluateResponse(response string) (*model.Evaluation, error) {
	response = extractJSON(response)

	var result struct {
		IsSuitable bool    `json:"is_suitable"`
		Score      float64 `json:"score"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(response), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	if result.Reason == "" {
		return nil, fmt.Errorf("no reason in response")
	}

	return &model.Evaluation{
		Suitable: result.IsSuitable && result.Score >= suitabilityThreshold,
		Score:    result.Score,
		Reason:   result.Reason,
	}, nil
}

func (s *NewsService) parseStructureResponse(response string) (*model.StructuredNews, error) {
	response = extractJSON(response)

	var result model.StructuredNews
	if err := json.Unmarshal([]byte(response), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	for name, part := range map[string]model.StructuredPart{
		"fact": result.Fact, "meaning": result.Meaning,
		"impact": result.Impact, "question": result.Question,
	} {
		if part.Summary == "" || part.Detail == "" {
			return nil, fmt.Errorf("incomplete %s part in response", name)
		}
	}
	return &result, nil
}

type lyricsSections struct {
	Intro     []string `json:"intro"`
	Verse1    []string `json:"verse1"`
	PreChorus []string `json:"pre_chorus"`
	Chorus    []string `json:"chorus"`
	Verse2    []string `json:"verse2"`
	Bridge    []string `json:"bridge"`
	Outro     []string `json:"outro"`
}

func (s *NewsService) parseLyricsResponse(response string) (*lyricsSections, error) {
	response = extractJSON(response)

	var result lyricsSections
	if err := json.Unmarshal([]byte(response), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	if len(result.Verse1) == 0 || len(result.Chorus) == 0 {
		return nil, fmt.Errorf("missing verse or chorus in response")
	}
	return &result, nil
}

// assembleLyrics lays the sections out in song order. The pre-chorus and
// chorus repeat, matching the fixed song form the renderer expects.
func assembleLyrics(sections *lyricsSections) string {
	var parts []string

	add := func(marker string, lines []string) {
		if len(lines) == 0 {
			return
		}
		parts = append(parts, marker)
		parts = append(parts, lines...)
		parts = append(parts, "")
	}

	add("[Intro]", sections.Intro)
	add("[Verse 1]", sections.Verse1)
	add("[Pre-Chorus]", sections.PreChorus)
	add("[Chorus]", sections.Chorus)
	add("[Verse 2]", sections.Verse2)
	add("[Pre-Chorus]", sections.PreChorus)
	add("[Chorus]", sections.Chorus)
	add("[Bridge]", sections.Bridge)
	add("[Chorus]", sections.Chorus)
	add("[Outro]", sections.Outro)

	return strings.TrimRight(strings.Join(parts, "\n"), "\n")
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(s string) string {
	// Find the first { and last }
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start != -1 && end != -1 && end > start {
		return s[start : end+1]
	}
	return s
}

// Mock implementations for development/testing
func (s *NewsService) evaluateMock(news model.NewsItem) *model.Evaluation {
	return &model.Evaluation{
		Suitable: true,
		Score:    78,
		Reason:   "Mock evaluation: treated as suitable because no AI client is configured.",
	}
}

func (s *NewsService) structureMock(news model.NewsItem) *model.StructuredNews {
	return &model.StructuredNews{
		Fact: model.StructuredPart{
			Summary: news.Title,
			Detail:  news.Body,
		},
		Meaning: model.StructuredPart{
			Summary: "A notable shift in policy or circumstance",
			Detail:  "The announcement marks a change from how things were done before.",
		},
		Impact: model.StructuredPart{
			Summary: "Daily life may change gradually",
			Detail:  "Costs, jobs and habits could shift over the coming years.",
		},
		Question: model.StructuredPart{
			Summary: "What can each of us do",
			Detail:  "Whether small individual choices add up remains an open question.",
		},
	}
}

func (s *NewsService) lyricsMock(structured *model.StructuredNews) string {
	sections := &lyricsSections{
		Intro: []string{"Hey, did you hear the news today"},
		Verse1: []string{
			"Something happened in the world",
			"And the papers spell it out",
			"Line by line the story grows",
			"Worth a song without a doubt",
		},
		PreChorus: []string{
			"Maybe this means more than it seems",
			"A quiet turn in all our dreams",
		},
		Chorus: []string{
			"Things might change, they might stay the same",
			"Nobody knows the end of the game",
			"But we can watch it side by side",
			"And sing about the turning tide",
		},
		Verse2: []string{
			"Experts say it takes some time",
			"Step by step and day by day",
			"Nothing shifts all at once",
			"But something's moving anyway",
		},
		Bridge: []string{
			"What can we do, you and me",
			"Small things count, or so they say",
		},
		Outro: []string{"Let's keep watching, come what may"},
	}
	return assembleLyrics(sections)
}
