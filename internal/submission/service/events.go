package service

import (
	"context"
	"encoding/json"
	"time"

	"codearena/internal/common/mq"
	"codearena/internal/judge"
)

const defaultVerdictTopic = "submission.verdicts"

// VerdictEvent is emitted once per finalized submission. Consumers
// (leaderboards, notifications) are outside this service.
type VerdictEvent struct {
	SubmissionID    string                 `json:"submissionId"`
	UserID          int64                  `json:"userId"`
	ProblemID       int64                  `json:"problemId"`
	Language        string                 `json:"language"`
	Status          judge.SubmissionStatus `json:"status"`
	TestCasesPassed int                    `json:"testCasesPassed"`
	TestCasesTotal  int                    `json:"testCasesTotal"`
	Runtime         float64                `json:"runtime"`
	Memory          int64                  `json:"memory"`
	FinalizedAt     time.Time              `json:"finalizedAt"`
}

type VerdictPublisher interface {
	PublishVerdict(ctx context.Context, event VerdictEvent) error
}

// MQVerdictPublisher publishes verdict events through the message queue.
type MQVerdictPublisher struct {
	producer mq.Producer
	topic    string
}

func NewVerdictPublisher(producer mq.Producer, topic string) *MQVerdictPublisher {
	if topic == "" {
		topic = defaultVerdictTopic
	}
	return &MQVerdictPublisher{producer: producer, topic: topic}
}

func (p *MQVerdictPublisher) PublishVerdict(ctx context.Context, event VerdictEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	message := mq.NewMessage(body)
	message.ID = event.SubmissionID
	message.SetHeader("event-type", "submission.verdict")
	return p.producer.Publish(ctx, p.topic, message)
}
