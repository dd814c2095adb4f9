package prompt

import (
	"context"

	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
)

// Script replays queued answers in order, used by tests and by
// non-interactive invocations with preset choices.
type Script struct {
	Selections []string
	Inputs     []string
	Confirms   []bool

	// Asked records every prompt title for assertions.
	Asked []string
}

func (s *Script) Select(_ context.Context, title string, options []Option) (string, error) {
	s.Asked = append(s.Asked, title)
	if len(s.Selections) == 0 {
		return "", flowerrors.New(flowerrors.TagValidation, "想定外の選択プロンプト: "+title)
	}
	answer := s.Selections[0]
	s.Selections = s.Selections[1:]
	for _, o := range options {
		if o.Key == answer {
			return answer, nil
		}
	}
	return "", flowerrors.New(flowerrors.TagValidation, "選択肢にない回答: "+answer)
}

func (s *Script) Input(_ context.Context, title, _ string) (string, error) {
	s.Asked = append(s.Asked, title)
	if len(s.Inputs) == 0 {
		return "", flowerrors.New(flowerrors.TagValidation, "想定外の入力プロンプト: "+title)
	}
	answer := s.Inputs[0]
	s.Inputs = s.Inputs[1:]
	return answer, nil
}

func (s *Script) Confirm(_ context.Context, question string) (bool, error) {
	s.Asked = append(s.Asked, question)
	if len(s.Confirms) == 0 {
		return false, flowerrors.New(flowerrors.TagValidation, "想定外の確認プロンプト: "+question)
	}
	answer := s.Confirms[0]
	s.Confirms = s.Confirms[1:]
	return answer, nil
}
