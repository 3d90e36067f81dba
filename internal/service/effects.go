package service

import (
	"context"

	"go.uber.org/zap"
)

// postCommitEffect runs after the attempt write has committed. Its failure is
// logged and never rolls the attempt back.
type postCommitEffect struct {
	name string
	run  func(ctx context.Context) error
}

type effectList []postCommitEffect

func (l *effectList) add(name string, run func(ctx context.Context) error) {
	*l = append(*l, postCommitEffect{name: name, run: run})
}

// runAll executes the effects in order and returns how many failed.
func (l effectList) runAll(ctx context.Context, log *zap.Logger) int {
	ctx = context.WithoutCancel(ctx)
	failed := 0
	for _, fx := range l {
		if err := fx.run(ctx); err != nil {
			failed++
			log.Error("Post-commit effect failed", zap.String("effect", fx.name), zap.Error(err))
		}
	}
	return failed
}
