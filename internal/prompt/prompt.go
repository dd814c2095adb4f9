// Package prompt abstracts the interactive questions the workflows ask.
// The terminal implementation is built on huh; tests use Script.
package prompt

import (
	"context"

	"github.com/charmbracelet/huh"

	flowerrors "github.com/teamflowhq/teamflow/internal/errors"
)

// Option is one selectable choice.
type Option struct {
	Key   string
	Label string
}

// Prompter asks the user. Implementations must honor context
// cancellation.
type Prompter interface {
	Select(ctx context.Context, title string, options []Option) (string, error)
	Input(ctx context.Context, title, placeholder string) (string, error)
	Confirm(ctx context.Context, question string) (bool, error)
}

// Terminal renders prompts with huh forms.
type Terminal struct{}

// NewTerminal returns the interactive prompter.
func NewTerminal() *Terminal { return &Terminal{} }

func (t *Terminal) Select(ctx context.Context, title string, options []Option) (string, error) {
	if len(options) == 0 {
		return "", flowerrors.New(flowerrors.TagValidation, "選択肢がありません")
	}
	huhOptions := make([]huh.Option[string], len(options))
	for i, o := range options {
		huhOptions[i] = huh.NewOption(o.Label, o.Key)
	}

	var picked string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(title).
			Options(huhOptions...).
			Value(&picked),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return "", wrapAbort(err)
	}
	return picked, nil
}

func (t *Terminal) Input(ctx context.Context, title, placeholder string) (string, error) {
	var value string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(title).
			Placeholder(placeholder).
			Value(&value),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return "", wrapAbort(err)
	}
	return value, nil
}

func (t *Terminal) Confirm(ctx context.Context, question string) (bool, error) {
	var yes bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("はい").
			Negative("いいえ").
			Value(&yes),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return false, wrapAbort(err)
	}
	return yes, nil
}

func wrapAbort(err error) error {
	if err == huh.ErrUserAborted {
		return flowerrors.Wrap(flowerrors.TagValidation, "入力がキャンセルされました", err)
	}
	return err
}
