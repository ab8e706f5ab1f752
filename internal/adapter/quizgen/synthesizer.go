// Package quizgen turns material text into validated question drafts using an LLM.
package quizgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"coursequiz/internal/domain"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

const systemPrompt = "You are a helpful tutor that creates quizzes from key points from educational materials. You only respond in JSON format exactly as the user describes."

const userPromptTemplate = `Given the material below:

%s

Generate exactly %d quiz questions:
- %d True/False
- %d Multiple Choice (1 correct + 3 plausible distractors)

Return your response as a **raw JSON array**, with each question object formatted like this:
True/False example:
{
  "question": "Text",
  "type": "TF",
  "answer": "true"
}

Multiple Choice example:
{
  "question": "Text",
  "type": "MCQ",
  "options": ["Option A", "Option B", "Option C", "Option D"],
  "answer": "a"
}

Use only lowercase letters ("a"-"d") for multiple choice answers. Do not include any explanations, markdown, or extra text. Ensure the JSON is valid and parsable.`

// errInvalidResponse marks an LLM answer that failed parsing or schema validation.
var errInvalidResponse = errors.New("invalid LLM response")

type wireItem struct {
	Question string   `json:"question"`
	Type     string   `json:"type"`
	Answer   string   `json:"answer"`
	Options  []string `json:"options,omitempty"`
}

// Synthesizer implements domain.QuestionSynthesizer.
type Synthesizer struct {
	llm      domain.LLMProvider
	schema   *gojsonschema.Schema
	attempts int
	logger   *zap.Logger
}

// NewSynthesizer creates a synthesizer that makes up to attempts calls per request
// before giving up on invalid responses.
func NewSynthesizer(llm domain.LLMProvider, attempts int, logger *zap.Logger) (*Synthesizer, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(draftsSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile draft schema: %w", err)
	}
	if attempts <= 0 {
		attempts = 1
	}
	return &Synthesizer{llm: llm, schema: schema, attempts: attempts, logger: logger}, nil
}

// Synthesize asks the LLM for itemCount questions about materialText. Provider errors
// are returned at once as LLM_SERVICE_ERROR; invalid responses are retried with the
// same prompt and end in GENERATION_FAILED.
func (s *Synthesizer) Synthesize(ctx context.Context, materialText string, itemCount int) ([]domain.Draft, error) {
	if itemCount <= 0 {
		return nil, nil
	}
	messages := BuildMessages(materialText, itemCount)

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		raw, err := s.llm.Complete(ctx, messages)
		if err != nil {
			s.logger.Error("LLM call failed", zap.Int("attempt", attempt), zap.Error(err))
			return nil, domain.NewLLMServiceError(err)
		}

		drafts, err := s.parse(raw)
		if err == nil {
			if len(drafts) != itemCount {
				s.logger.Warn("LLM returned a different number of questions than requested",
					zap.Int("requested", itemCount),
					zap.Int("received", len(drafts)))
			}
			return drafts, nil
		}

		lastErr = err
		s.logger.Warn("Discarding invalid LLM response",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.attempts),
			zap.String("raw_response", truncate(raw, 500)),
			zap.Error(err))
	}
	return nil, domain.NewGenerationFailedError(s.attempts, lastErr)
}

// BuildMessages returns the chat sent for one synthesis call.
func BuildMessages(materialText string, itemCount int) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: systemPrompt},
		{Role: domain.RoleUser, Content: fmt.Sprintf(userPromptTemplate, materialText, itemCount, itemCount/2, (itemCount+1)/2)},
	}
}

func (s *Synthesizer) parse(raw string) ([]domain.Draft, error) {
	body := cleanResponse(raw)

	result, err := s.schema.Validate(gojsonschema.NewStringLoader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: not JSON: %v", errInvalidResponse, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", errInvalidResponse, strings.Join(msgs, "; "))
	}

	var items []wireItem
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidResponse, err)
	}
	drafts := make([]domain.Draft, 0, len(items))
	for _, it := range items {
		drafts = append(drafts, toDraft(it))
	}
	return drafts, nil
}

// toDraft converts a schema-valid item.
func toDraft(it wireItem) domain.Draft {
	question := strings.TrimSpace(it.Question)
	if it.Type == string(domain.QuestionTypeTrueFalse) {
		return domain.TrueFalseDraft{Question: question, Answer: strings.EqualFold(it.Answer, "true")}
	}
	d := domain.MultipleChoiceDraft{Question: question, AnswerIndex: int(it.Answer[0] - 'a')}
	copy(d.Options[:], it.Options)
	return d
}

// cleanResponse drops reasoning blocks and markdown fences around the JSON array.
func cleanResponse(raw string) string {
	s := strings.TrimSpace(raw)
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "</think>")
		if end == -1 {
			s = s[:start]
			break
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}

	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if start, end := strings.Index(s, "["), strings.LastIndex(s, "]"); start != -1 && end > start {
		s = s[start : end+1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
