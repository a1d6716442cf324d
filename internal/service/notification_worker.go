package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"crolars/internal/realtime"
	"crolars/internal/util"

	amqp "github.com/rabbitmq/amqp091-go"
)

// deliverySource is the slice of the broker client the worker needs
type deliverySource interface {
	DeclareDirect(exchange, queue, routingKey string) error
	Consume(queue, consumer string) (<-chan amqp.Delivery, error)
}

const (
	notificationConsumerTag = "notification_worker"
	defaultResubscribeDelay = 5 * time.Second
)

// NotificationWorker consumes notification messages from RabbitMQ and pushes them to the hub
type NotificationWorker struct {
	source           deliverySource
	pusher           Pusher
	resubscribeDelay time.Duration
	stopChan         chan bool
	stopped          chan struct{}
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(rabbitMQ *util.RabbitMQClient, pusher Pusher) *NotificationWorker {
	w := &NotificationWorker{
		pusher:           pusher,
		resubscribeDelay: defaultResubscribeDelay,
		stopChan:         make(chan bool),
		stopped:          make(chan struct{}),
	}
	if rabbitMQ != nil {
		w.source = rabbitMQ
	}
	return w
}

// Start subscribes to the notification queue and consumes it until Stop.
// When the broker closes the delivery channel the worker subscribes again.
func (w *NotificationWorker) Start() error {
	if w.source == nil {
		close(w.stopped)
		return nil // RabbitMQ not available, service pushes directly
	}

	msgs, err := w.subscribe()
	if err != nil {
		close(w.stopped)
		return err
	}

	go w.run(msgs)
	return nil
}

func (w *NotificationWorker) subscribe() (<-chan amqp.Delivery, error) {
	if err := w.source.DeclareDirect(NotificationExchange, NotificationQueueName, NotificationRoutingKey); err != nil {
		return nil, err
	}
	return w.source.Consume(NotificationQueueName, notificationConsumerTag)
}

func (w *NotificationWorker) run(msgs <-chan amqp.Delivery) {
	defer close(w.stopped)
	log.Println("Notification worker started, consuming messages...")
	for {
		select {
		case <-w.stopChan:
			log.Println("Notification worker stopped")
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Println("Notification queue closed, resubscribing...")
				if msgs = w.resubscribe(); msgs == nil {
					log.Println("Notification worker stopped")
					return
				}
				continue
			}
			w.handle(msg)
		}
	}
}

// resubscribe retries until a new delivery channel is open. It returns nil
// once the worker is stopped.
func (w *NotificationWorker) resubscribe() <-chan amqp.Delivery {
	for attempt := 1; ; attempt++ {
		select {
		case <-w.stopChan:
			return nil
		case <-time.After(w.resubscribeDelay):
		}

		msgs, err := w.subscribe()
		if err == nil {
			log.Printf("Notification worker resubscribed on attempt %d", attempt)
			return msgs
		}
		log.Printf("Failed to resubscribe notification worker (attempt %d): %v", attempt, err)
	}
}

func (w *NotificationWorker) handle(msg amqp.Delivery) {
	err := w.process(msg.Body)
	switch {
	case err == nil:
		msg.Ack(false)
	case errors.Is(err, errMalformedMessage):
		// Requeueing a message that cannot be decoded would loop forever
		log.Printf("Dropping notification message: %v", err)
		msg.Nack(false, false)
	default:
		log.Printf("Error processing notification message: %v", err)
		msg.Nack(false, true)
	}
}

var errMalformedMessage = errors.New("malformed notification message")

// process pushes one decoded message to the user's open streams
func (w *NotificationWorker) process(body []byte) error {
	var message NotificationMessage
	if err := json.Unmarshal(body, &message); err != nil {
		return fmt.Errorf("%w: %v", errMalformedMessage, err)
	}
	if message.UserID == "" {
		return errMalformedMessage
	}

	if w.pusher == nil {
		return errors.New("no realtime hub attached")
	}

	w.pusher.SendToUser(message.UserID, realtime.MessageTypeNotification, &message.Notification)
	log.Printf("Notification pushed for user: %s, type: %s", message.UserID, message.Notification.Type)
	return nil
}

// Stop stops the notification worker and waits for the consume loop to exit
func (w *NotificationWorker) Stop() {
	close(w.stopChan)
	<-w.stopped
}
