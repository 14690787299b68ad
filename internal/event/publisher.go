package event

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rabbitmq/amqp091-go"
)

type Publisher interface {
	PublishUserRegistered(ctx context.Context, userID, email, provider string) error
	PublishUserLogin(ctx context.Context, userID, email, provider string) error
	PublishModuleCompleted(ctx context.Context, userID, module string) error
	PublishProgressReset(ctx context.Context, userID string) error
	PublishQuizAnswered(ctx context.Context, userID string, questionID int, correct bool, date string) error
	Close() error
}

type EventPublisher struct {
	mu           sync.Mutex
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	enabled      bool
}

// NewEventPublisher connects to RabbitMQ. An empty URI gives a publisher that only logs.
func NewEventPublisher(rabbitURI, exchangeName string) (*EventPublisher, error) {
	if rabbitURI == "" {
		log.Println("Warning: RabbitMQ URI is empty, event publishing is disabled")
		return &EventPublisher{enabled: false}, nil
	}

	conn, err := amqp091.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &EventPublisher{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		enabled:      true,
	}, nil
}

func (p *EventPublisher) Enabled() bool {
	return p.enabled
}

func (p *EventPublisher) publishEvent(ctx context.Context, routingKey EventType, event any) error {
	if !p.enabled {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	err = p.channel.PublishWithContext(
		pubCtx,
		p.exchangeName,     // exchange
		string(routingKey), // routing key
		false,              // mandatory
		false,              // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Printf("Published event: %s", routingKey)
	return nil
}

func (p *EventPublisher) PublishUserRegistered(ctx context.Context, userID, email, provider string) error {
	return p.publishEvent(ctx, EventTypeUserRegistered, NewUserRegisteredEvent(userID, email, provider))
}

func (p *EventPublisher) PublishUserLogin(ctx context.Context, userID, email, provider string) error {
	return p.publishEvent(ctx, EventTypeUserLogin, NewUserLoginEvent(userID, email, provider))
}

func (p *EventPublisher) PublishModuleCompleted(ctx context.Context, userID, module string) error {
	return p.publishEvent(ctx, EventTypeModuleCompleted, NewModuleCompletedEvent(userID, module))
}

func (p *EventPublisher) PublishProgressReset(ctx context.Context, userID string) error {
	return p.publishEvent(ctx, EventTypeProgressReset, NewProgressResetEvent(userID))
}

func (p *EventPublisher) PublishQuizAnswered(ctx context.Context, userID string, questionID int, correct bool, date string) error {
	return p.publishEvent(ctx, EventTypeQuizAnswered, NewQuizAnsweredEvent(userID, questionID, correct, date))
}

func (p *EventPublisher) Close() error {
	if !p.enabled {
		return nil
	}

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			log.Printf("Error closing RabbitMQ channel: %v", err)
		}
	}

	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("error closing RabbitMQ connection: %w", err)
		}
	}

	return nil
}
