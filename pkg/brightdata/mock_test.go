package brightdata

import "context"

// mockClient implements Client for testing the submit/poll/collect layers.
type mockClient struct {
	triggerFunc  func(ctx context.Context, urls []string) (*TriggerResponse, error)
	progressFunc func(ctx context.Context, snapshotID string) (*ProgressResponse, error)
	runningFunc  func(ctx context.Context) (int, error)
	downloadFunc func(ctx context.Context, snapshotID string) ([]Profile, error)
}

func (m *mockClient) Trigger(ctx context.Context, urls []string) (*TriggerResponse, error) {
	return m.triggerFunc(ctx, urls)
}

func (m *mockClient) Progress(ctx context.Context, snapshotID string) (*ProgressResponse, error) {
	return m.progressFunc(ctx, snapshotID)
}

func (m *mockClient) RunningCount(ctx context.Context) (int, error) {
	if m.runningFunc == nil {
		return 0, nil
	}
	return m.runningFunc(ctx)
}

func (m *mockClient) Download(ctx context.Context, snapshotID string) ([]Profile, error) {
	return m.downloadFunc(ctx, snapshotID)
}
