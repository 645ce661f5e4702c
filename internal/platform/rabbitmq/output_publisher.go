package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ArchiveEntry is the payload published for every completed research output.
type ArchiveEntry struct {
	OutputID  string   `json:"output_id"`
	QueryID   string   `json:"query_id"`
	Username  string   `json:"username"`
	Topic     string   `json:"topic"`
	Summary   string   `json:"summary"`
	Sources   []string `json:"sources"`
	ToolsUsed []string `json:"tools_used"`
}

type OutputPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewOutputPublisher(conn *amqp.Connection, queueName string) *OutputPublisher {
	return &OutputPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *OutputPublisher) Publish(ctx context.Context, entry ArchiveEntry) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal archive entry failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish archive entry failed: %w", err)
	}
	return nil
}
