package runner

import (
	"context"

	"github.com/tomatool/uitest/internal/steps"
)

// Applications abstracts driver.Applications for testing
type Applications interface {
	steps.Applications
	DetachAll(ctx context.Context) error
}
