package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"codearena/internal/hint"
	problemrepo "codearena/internal/problem/repository"
	pkgerrors "codearena/pkg/errors"
)

const maxChatMessages = 50

// HintService answers questions about a specific problem. The model is
// instructed to stay on topic and to nudge rather than hand out full
// solutions unless asked.
type HintService struct {
	generator hint.Generator
	problems  problemrepo.ProblemRepository
}

func NewHintService(generator hint.Generator, problems problemrepo.ProblemRepository) *HintService {
	return &HintService{generator: generator, problems: problems}
}

type HintInput struct {
	ProblemID int64
	Messages  []hint.ChatMessage
}

func (s *HintService) Hint(ctx context.Context, input HintInput) (string, error) {
	if len(input.Messages) == 0 {
		return "", pkgerrors.New(pkgerrors.InvalidParams).WithMessage("at least one message is required")
	}
	if len(input.Messages) > maxChatMessages {
		return "", pkgerrors.New(pkgerrors.InvalidParams).WithMessage("conversation is too long")
	}
	for _, message := range input.Messages {
		if message.Role != "user" && message.Role != "model" {
			return "", pkgerrors.New(pkgerrors.InvalidParams).
				WithMessage(fmt.Sprintf("unknown message role %q", message.Role))
		}
	}

	problem, err := s.problems.GetByID(ctx, nil, input.ProblemID)
	if err != nil {
		if stderrors.Is(err, problemrepo.ErrProblemNotFound) {
			return "", pkgerrors.New(pkgerrors.ProblemNotFound)
		}
		return "", pkgerrors.Wrap(fmt.Errorf("load problem failed: %w", err), pkgerrors.DatabaseError)
	}

	return s.generator.GenerateContent(ctx, systemInstruction(problem), input.Messages)
}

func systemInstruction(problem *problemrepo.Problem) string {
	var b strings.Builder
	b.WriteString("You are a data structures and algorithms tutor. Help the user with the problem below. ")
	b.WriteString("Give hints and explain concepts; provide a full solution only when explicitly asked. ")
	b.WriteString("Politely decline questions unrelated to this problem.\n\n")

	b.WriteString("Title: ")
	b.WriteString(problem.Title)
	b.WriteString("\n\nDescription:\n")
	b.WriteString(problem.Description)

	if len(problem.VisibleTestCases) > 0 {
		b.WriteString("\n\nExamples:\n")
		for i, tc := range problem.VisibleTestCases {
			fmt.Fprintf(&b, "%d. input: %s / expected output: %s", i+1, tc.Input, tc.Output)
			if tc.Explanation != "" {
				b.WriteString(" (")
				b.WriteString(tc.Explanation)
				b.WriteString(")")
			}
			b.WriteString("\n")
		}
	}

	if len(problem.StarterCode) > 0 {
		b.WriteString("\nStarter code:\n")
		for language, code := range problem.StarterCode {
			fmt.Fprintf(&b, "[%s]\n%s\n", language, code)
		}
	}
	return b.String()
}
