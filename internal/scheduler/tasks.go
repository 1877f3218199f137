package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskSendChatMessage = "chat.message.send"

type SendChatMessagePayload struct {
	Identity string `json:"identity"`
	Text     string `json:"text"`
}

func NewSendChatMessageTask(payload SendChatMessagePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendChatMessage, data), nil
}

func ParseSendChatMessagePayload(task *asynq.Task) (SendChatMessagePayload, error) {
	var payload SendChatMessagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SendChatMessagePayload{}, err
	}
	return payload, nil
}
