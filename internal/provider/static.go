package provider

import (
	"context"
	"fmt"
	"strings"
)

// Static answers without any network call. With a fixed text it returns that
// text; otherwise it echoes the last paragraph of the prompt, which is the
// user's question once the executor has added its context header.
type Static struct {
	text string
}

func NewStatic(text string) *Static {
	return &Static{text: text}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.text != "" {
		return &Completion{Text: s.text, Model: req.Model}, nil
	}

	question := strings.TrimSpace(req.Prompt)
	if i := strings.LastIndex(question, "\n\n"); i >= 0 {
		question = strings.TrimSpace(question[i+2:])
	}
	return &Completion{
		Text:  fmt.Sprintf("Model %s considered the request. %s", req.Model, question),
		Model: req.Model,
	}, nil
}
