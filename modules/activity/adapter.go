package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/task-tracker/domain/apperr"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ActivityPort reads the activity trail.
type ActivityPort interface {
	ListActivity(ctx context.Context, ownerID uint) (*ListActivityResponse, error)
}

// ActivityAdapter implements ActivityPort over the service container.
type ActivityAdapter struct {
	container mono.ServiceContainer
}

var _ ActivityPort = (*ActivityAdapter)(nil)

// NewActivityAdapter creates a new ActivityAdapter.
func NewActivityAdapter(container mono.ServiceContainer) *ActivityAdapter {
	return &ActivityAdapter{container: container}
}

// ListActivity returns the events recorded for ownerID.
func (a *ActivityAdapter) ListActivity(ctx context.Context, ownerID uint) (*ListActivityResponse, error) {
	req := ListActivityRequest{OwnerID: ownerID}
	var resp ListActivityResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"list-activity",
		json.Marshal,
		json.Unmarshal,
		req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("list-activity request failed: %w", apperr.FromRemote(err))
	}
	return &resp, nil
}
