package event

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeUserRegistered  EventType = "user.registered"
	EventTypeUserLogin       EventType = "user.login"
	EventTypeModuleCompleted EventType = "progress.module_completed"
	EventTypeProgressReset   EventType = "progress.reset"
	EventTypeQuizAnswered    EventType = "quiz.answered"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Version   string    `json:"version"`
}

type UserEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Provider string `json:"provider"`
}

type ModuleCompletedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Module string `json:"module"`
}

type ProgressResetEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
}

// QuizAnsweredEvent is published for guests too; UserID is empty then.
type QuizAnsweredEvent struct {
	BaseEvent
	UserID     string `json:"user_id,omitempty"`
	QuestionID int    `json:"question_id"`
	Correct    bool   `json:"correct"`
	Date       string `json:"date"`
}

func newBase(t EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().Unix(),
		Version:   "1.0",
	}
}

func NewUserRegisteredEvent(userID, email, provider string) *UserEvent {
	return &UserEvent{
		BaseEvent: newBase(EventTypeUserRegistered),
		UserID:    userID,
		Email:     email,
		Provider:  provider,
	}
}

func NewUserLoginEvent(userID, email, provider string) *UserEvent {
	return &UserEvent{
		BaseEvent: newBase(EventTypeUserLogin),
		UserID:    userID,
		Email:     email,
		Provider:  provider,
	}
}

func NewModuleCompletedEvent(userID, module string) *ModuleCompletedEvent {
	return &ModuleCompletedEvent{
		BaseEvent: newBase(EventTypeModuleCompleted),
		UserID:    userID,
		Module:    module,
	}
}

func NewProgressResetEvent(userID string) *ProgressResetEvent {
	return &ProgressResetEvent{
		BaseEvent: newBase(EventTypeProgressReset),
		UserID:    userID,
	}
}

func NewQuizAnsweredEvent(userID string, questionID int, correct bool, date string) *QuizAnsweredEvent {
	return &QuizAnsweredEvent{
		BaseEvent:  newBase(EventTypeQuizAnswered),
		UserID:     userID,
		QuestionID: questionID,
		Correct:    correct,
		Date:       date,
	}
}
