package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names what happened to an expense.
type EventType string

const (
	ExpenseCreated EventType = "expense.created"
	ExpenseUpdated EventType = "expense.updated"
	ExpenseDeleted EventType = "expense.deleted"
)

func (t EventType) IsValid() bool {
	switch t {
	case ExpenseCreated, ExpenseUpdated, ExpenseDeleted:
		return true
	default:
		return false
	}
}

// ExpenseEvent is a lightweight notification. Consumers load the current
// state of the expense from storage using the ids it carries.
type ExpenseEvent struct {
	Type      EventType `json:"type"`
	ExpenseID string    `json:"expense_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEvent(t EventType, userID, expenseID string) ExpenseEvent {
	return ExpenseEvent{
		Type:      t,
		ExpenseID: expenseID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON decodes and validates an event.
func ExpenseEventFromJSON(data []byte) (ExpenseEvent, error) {
	var evt ExpenseEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return ExpenseEvent{}, err
	}
	if !evt.Type.IsValid() {
		return ExpenseEvent{}, fmt.Errorf("unknown event type %q", evt.Type)
	}
	if evt.ExpenseID == "" || evt.UserID == "" {
		return ExpenseEvent{}, fmt.Errorf("event %s is missing ids", evt.Type)
	}
	return evt, nil
}
