package collab

import (
	"context"
	"errors"
)

// TaskClient persists tasks through the task service. Creation is a single
// shot; a duplicate retry would double the task.
type TaskClient struct {
	client
}

func NewTaskClient(cfg Config) *TaskClient {
	return &TaskClient{client: newClient(cfg)}
}

type taskRequest struct {
	Title string `json:"title"`
}

func (c *TaskClient) CreateTask(ctx context.Context, title string) error {
	_, err := c.postJSON(ctx, "/tasks", taskRequest{Title: title}, nil)
	return err
}

// ReminderClient schedules reminders. Same single-shot rule as tasks.
type ReminderClient struct {
	client
}

func NewReminderClient(cfg Config) *ReminderClient {
	return &ReminderClient{client: newClient(cfg)}
}

type reminderRequest struct {
	Description string `json:"description"`
	Time        string `json:"time"`
}

func (c *ReminderClient) CreateReminder(ctx context.Context, description, timestamp string) error {
	_, err := c.postJSON(ctx, "/reminders", reminderRequest{Description: description, Time: timestamp}, nil)
	return err
}

// SearchClient resolves a free-text query to a playable track. Lookups are
// idempotent so transient failures retry once.
type SearchClient struct {
	client
}

func NewSearchClient(cfg Config) *SearchClient {
	return &SearchClient{client: newClient(cfg)}
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	TrackID string `json:"track_id"`
	Found   bool   `json:"found"`
}

// SearchTrack returns the best-match track id, or found=false when the
// catalogue has no match. A miss is not an error.
func (c *SearchClient) SearchTrack(ctx context.Context, query string) (string, bool, error) {
	var resp searchResponse
	if err := c.postJSONRetry(ctx, "/search/track", searchRequest{Query: query}, &resp); err != nil {
		return "", false, err
	}
	if !resp.Found || resp.TrackID == "" {
		return "", false, nil
	}
	return resp.TrackID, true, nil
}

// AutoPlayClient asks the playback service to start a track on the user's
// active device. Idempotent on the service side, so one retry is safe.
type AutoPlayClient struct {
	client
}

func NewAutoPlayClient(cfg Config) *AutoPlayClient {
	return &AutoPlayClient{client: newClient(cfg)}
}

type autoPlayRequest struct {
	TrackID string `json:"track_id"`
	UserID  string `json:"user_id"`
}

type autoPlayResponse struct {
	Success bool `json:"success"`
}

var ErrAutoPlayRefused = errors.New("auto-play refused by playback service")

func (c *AutoPlayClient) Play(ctx context.Context, trackID, userID string) error {
	var resp autoPlayResponse
	if err := c.postJSONRetry(ctx, "/play", autoPlayRequest{TrackID: trackID, UserID: userID}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return ErrAutoPlayRefused
	}
	return nil
}
