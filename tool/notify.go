package tool

import (
	"context"
	"errors"

	"github.com/petal-labs/commandry/tool/mcp"
)

// ForwardListChanged sends one tools/list_changed notification per signal
// observed on monitor until ctx is done or the monitor closes. Bursts that
// arrive while send is running collapse into a single notification.
func ForwardListChanged(ctx context.Context, monitor *Monitor, send func(context.Context, mcp.Message) error) error {
	if monitor == nil {
		return errors.New("tool: forward list changed requires a monitor")
	}
	if send == nil {
		return errors.New("tool: forward list changed requires a send function")
	}

	sub := monitor.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-sub.Changes():
			if !ok {
				return nil
			}
			monitor.Observe()
			if err := send(ctx, mcp.ListChangedNotification()); err != nil {
				return err
			}
		}
	}
}
