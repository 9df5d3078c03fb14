// Package queue also contains the background consumer that listens to the
// attendance queues and appends structured lines to logs/attendance.log,
// giving the club an on-disk audit trail of promotions and auto-cancels
// independent of the primary database.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// StartAttendanceConsumer connects to RabbitMQ, declares the attendance
// queues (durable) and starts consuming. The function runs a reconnect
// loop forever; processing errors are logged and the offending message
// rejected without requeue so the server keeps operating.
func StartAttendanceConsumer(brokerURL string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL)
		if err != nil {
			log.Warn("attendance consumer dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, log); err != nil {
			log.Warn("attendance consumer loop ended", zap.Error(err))
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("attendance consumer set QoS failed", zap.Error(err))
	}

	for _, name := range []string{PromotedQueueName, AutoCanceledQueueName} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
	}

	promoted, err := ch.Consume(PromotedQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", PromotedQueueName, err)
	}
	canceled, err := ch.Consume(AutoCanceledQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", AutoCanceledQueueName, err)
	}

	for {
		select {
		case d, ok := <-promoted:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			ackOrReject(d, handlePromoted(d.Body), log)
		case d, ok := <-canceled:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			ackOrReject(d, handleAutoCanceled(d.Body), log)
		}
	}
}

func ackOrReject(d amqp.Delivery, err error, log *zap.Logger) {
	if err != nil {
		log.Warn("attendance consumer handle message failed", zap.Error(err))
		_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
		return
	}
	_ = d.Ack(false)
}

func handlePromoted(body []byte) error {
	var ev AttendancePromotedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] Waitlist promotion | event_id=%d | user_id=%d | title=%q | starts_at=%s\n",
		ev.PromotedAt, ev.EventID, ev.UserID, ev.Title, ev.StartsAt)
	return appendAuditLine(line)
}

func handleAutoCanceled(body []byte) error {
	var ev EventAutoCanceledEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	line := fmt.Sprintf("[%s] Event auto-canceled | event_id=%d | title=%q | starts_at=%s\n",
		ev.CanceledAt, ev.EventID, ev.Title, ev.StartsAt)
	return appendAuditLine(line)
}

func appendAuditLine(line string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "attendance.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
