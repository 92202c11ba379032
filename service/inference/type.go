package inference

import (
	"context"

	"github.com/khaledhikmat/nsfw-go/model"
)

// IService is the classifier capability boundary. Implementations must be
// safe to call from many concurrent pipeline runs; the returned score is
// normalized so Nsfw+Normal sum to ~1.0.
type IService interface {
	Classify(ctx context.Context, data []byte) (model.Score, error)
	Finalize()
}
