package inference

import (
	"context"

	"github.com/khaledhikmat/nsfw-go/model"
)

type fakeService struct {
	scoreFn func(data []byte) (model.Score, error)
}

// NewFake returns a classifier whose scores come from scoreFn. A nil
// scoreFn always reports safe content.
func NewFake(scoreFn func(data []byte) (model.Score, error)) IService {
	if scoreFn == nil {
		scoreFn = func(_ []byte) (model.Score, error) {
			return model.Score{Nsfw: 0, Normal: 1}, nil
		}
	}

	return &fakeService{
		scoreFn: scoreFn,
	}
}

func (svc *fakeService) Classify(ctx context.Context, data []byte) (model.Score, error) {
	select {
	case <-ctx.Done():
		return model.Score{}, ctx.Err()
	default:
	}

	return svc.scoreFn(data)
}

func (svc *fakeService) Finalize() {
}
