package scheduler

import (
	"context"
	"errors"
	"testing"

	"cashback_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type recordingSender struct {
	identity string
	text     string
	err      error
}

func (s *recordingSender) Notify(_ context.Context, identity, text string) error {
	s.identity, s.text = identity, text
	return s.err
}

func TestHandleSendChatMessage(t *testing.T) {
	sender := &recordingSender{}
	w := &Worker{sender: sender, log: logger.Nop()}

	task, err := NewSendChatMessageTask(SendChatMessagePayload{Identity: "whatsapp|316", Text: "hello"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := w.handleSendChatMessage(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.identity != "whatsapp|316" || sender.text != "hello" {
		t.Fatalf("unexpected delivery %+v", sender)
	}
}

func TestHandleSendChatMessageRetriesDeliveryErrors(t *testing.T) {
	w := &Worker{sender: &recordingSender{err: errors.New("gateway down")}, log: logger.Nop()}

	task, _ := NewSendChatMessageTask(SendChatMessagePayload{Identity: "whatsapp|316", Text: "hello"})
	err := w.handleSendChatMessage(context.Background(), task)
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected a retryable error, got %v", err)
	}
}

func TestHandleSendChatMessageSkipsBrokenPayloads(t *testing.T) {
	w := &Worker{sender: &recordingSender{}, log: logger.Nop()}

	for _, task := range []*asynq.Task{
		asynq.NewTask(TaskSendChatMessage, []byte("{not json")),
		asynq.NewTask(TaskSendChatMessage, []byte(`{"identity":"","text":"x"}`)),
	} {
		if err := w.handleSendChatMessage(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
			t.Fatalf("expected SkipRetry, got %v", err)
		}
	}
}
