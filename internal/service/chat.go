package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/liu-chun-wu/SleepGenius/internal"
	"github.com/liu-chun-wu/SleepGenius/internal/gemini"
	"github.com/liu-chun-wu/SleepGenius/internal/storage"
)

var validate = validator.New()

// Answer-source tags. Clients read these instead of sniffing the
// answer text for fallback sentences.
const (
	SourceGemini   = "gemini"
	SourceFallback = "fallback"
)

// Fixed fallback answers: one for a response that came back but could
// not be used, one for a request that never got an answer at all.
const (
	fallbackBadResponse = "The sleep coach returned an unexpected answer. Please try again later."
	fallbackUnreachable = "The sleep coach is unreachable right now. Please try again later."
)

type ChatRequest struct {
	Date     internal.Date `json:"date" validate:"required"`
	Question string        `json:"question" validate:"required"`
}

func ValidateChatRequest(req *ChatRequest) error {
	return validate.Struct(req)
}

// ChatResult is the chat answer tagged with where it came from.
type ChatResult struct {
	Answer string
	Score  *int
	Source string
}

// AskCoach fetches the night for the requested date, builds the
// prompt, and asks the generator once. Upstream failures are folded
// into a fallback answer with Source set to SourceFallback; they are
// never returned as errors. A missing night is storage.ErrNotFound and
// the generator is not called.
func AskCoach(ctx context.Context, repo storage.SleepRepository, gen gemini.Generator, logger internal.Logger, date internal.Date, question string) (*ChatResult, error) {
	summary, err := repo.GetSummaryByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	stages, err := repo.ListSegments(ctx, summary.SummaryID)
	if err != nil {
		return nil, err
	}
	samples, err := repo.ListRespiration(ctx, summary.SummaryID)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(question, summary, stages, samples)
	answer, err := gen.Generate(ctx, prompt)
	if err != nil {
		logger.Errorf("chat: generation failed for %s: %v", date, err)
		fallback := fallbackUnreachable
		if errors.Is(err, gemini.ErrBadResponse) {
			fallback = fallbackBadResponse
		}
		return &ChatResult{Answer: fallback, Score: summary.OverallScore, Source: SourceFallback}, nil
	}
	return &ChatResult{Answer: answer, Score: summary.OverallScore, Source: SourceGemini}, nil
}
