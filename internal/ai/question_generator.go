package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"vidyai-rag/internal/model"
)

const mcqSystemPrompt = `You are an expert CBSE curriculum question setter.
Generate exactly <<NUM_QUESTIONS>> multiple-choice questions (MCQs) based strictly on the provided chapter content.

Rules:
- Each question must have exactly 4 options labelled A, B, C, D.
- Only one correct answer per question.
- Include a concise explanation (1-2 sentences) for the correct answer.
- Vary difficulty: mix easy (30%), medium (50%), hard (20%).
- Questions must be factually accurate and grounded in the provided context.
- Return ONLY valid JSON, no markdown fences and no extra text.

Output schema:
{
  "questions": [
    {
      "id": 1,
      "question": "Question text?",
      "options": [
        {"key": "A", "text": "Option A"},
        {"key": "B", "text": "Option B"},
        {"key": "C", "text": "Option C"},
        {"key": "D", "text": "Option D"}
      ],
      "correct_answer": "A",
      "explanation": "Brief explanation."
    }
  ]
}
`

type Completer interface {
	Complete(ctx context.Context, in CompletionRequest) (string, error)
}

// QuestionGenerator turns retrieved chapter context into an MCQ set.
type QuestionGenerator struct {
	llm Completer
}

func NewQuestionGenerator(llm Completer) *QuestionGenerator {
	return &QuestionGenerator{llm: llm}
}

func (g *QuestionGenerator) Generate(ctx context.Context, chapterContext, chapterName string, count int) (*model.QuestionSet, error) {
	system := strings.ReplaceAll(mcqSystemPrompt, "<<NUM_QUESTIONS>>", strconv.Itoa(count))
	user := fmt.Sprintf("Chapter: %s\n\nContent:\n%s\n\nGenerate %d MCQ questions based on the above content.",
		chapterName, chapterContext, count)

	out, err := g.llm.Complete(ctx, CompletionRequest{
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		JSONObject: true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate questions failed: %w", err)
	}

	var set model.QuestionSet
	if err := json.Unmarshal([]byte(stripFences(out)), &set); err != nil {
		return nil, fmt.Errorf("parse generated questions failed: %w", err)
	}
	if len(set.Questions) == 0 {
		return nil, fmt.Errorf("generator returned no questions")
	}
	return &set, nil
}

// stripFences removes a ```json ... ``` wrapper some models add despite the prompt.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
