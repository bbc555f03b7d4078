package queue

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

const TypeBookingFulfilled = "booking:fulfilled"

const QueueNotifications = "notifications"

var ErrInvalidPayload = errors.New("invalid_task_payload")

// BookingFulfilledPayload announces a committed fulfillment. Ids travel as
// strings so consumers in other runtimes keep full snowflake precision.
type BookingFulfilledPayload struct {
	BookingID  string `json:"booking_id"`
	ClientID   string `json:"client_id"`
	ProviderID string `json:"provider_id"`
	ChatID     string `json:"chat_id"`
	Kind       string `json:"kind"`
	Subject    string `json:"subject"`
	Content    string `json:"content"`
	ViewURL    string `json:"view_url,omitempty"`
	IntentRef  string `json:"intent_ref,omitempty"`
}

func (p BookingFulfilledPayload) Validate() error {
	if p.BookingID == "" || p.ClientID == "" {
		return ErrInvalidPayload
	}
	return nil
}

func NewBookingFulfilledTask(payload BookingFulfilledPayload) (*asynq.Task, []asynq.Option, error) {
	if err := payload.Validate(); err != nil {
		return nil, nil, err
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeBookingFulfilled, b)
	opts := []asynq.Option{
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
		// One delivery per booking even if dispatch is retried.
		asynq.TaskID(TypeBookingFulfilled + ":" + payload.BookingID),
	}
	return task, opts, nil
}

func ParseBookingFulfilled(task *asynq.Task) (BookingFulfilledPayload, error) {
	var payload BookingFulfilledPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return BookingFulfilledPayload{}, ErrInvalidPayload
	}
	if err := payload.Validate(); err != nil {
		return BookingFulfilledPayload{}, err
	}
	return payload, nil
}
