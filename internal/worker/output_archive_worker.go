package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"smart-research-agent/internal/platform/rabbitmq"
)

// OutputArchiveWorker consumes completed research outputs from the archive
// queue and appends them to a local text file.
type OutputArchiveWorker struct {
	conn        *amqp.Connection
	queueName   string
	archiveFile string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOutputArchiveWorker(conn *amqp.Connection, queueName, archiveFile string) *OutputArchiveWorker {
	if archiveFile == "" {
		archiveFile = "research_output.txt"
	}
	return &OutputArchiveWorker{
		conn:        conn,
		queueName:   queueName,
		archiveFile: archiveFile,
	}
}

func (w *OutputArchiveWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var entry rabbitmq.ArchiveEntry
				if err := json.Unmarshal(d.Body, &entry); err != nil {
					log.Printf("worker decode archive entry failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.appendEntry(entry); err != nil {
					log.Printf("worker archive output failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *OutputArchiveWorker) appendEntry(entry rabbitmq.ArchiveEntry) error {
	var b strings.Builder
	fmt.Fprintf(&b, "--- Research Output ---\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "User: %s  Query: %s  Output: %s\n", entry.Username, entry.QueryID, entry.OutputID)
	fmt.Fprintf(&b, "Topic: %s\n\n%s\n", entry.Topic, entry.Summary)
	if len(entry.Sources) > 0 {
		fmt.Fprintf(&b, "\nSources:\n")
		for _, source := range entry.Sources {
			fmt.Fprintf(&b, "- %s\n", source)
		}
	}
	if len(entry.ToolsUsed) > 0 {
		fmt.Fprintf(&b, "Tools: %s\n", strings.Join(entry.ToolsUsed, ", "))
	}
	b.WriteString("\n")

	f, err := os.OpenFile(w.archiveFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open archive file failed: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("write archive file failed: %w", err)
	}
	return nil
}

func (w *OutputArchiveWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
