package pubsub

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
)

// Event[T] wraps a topic name and provides type-safe publishing.
type Event[T any] struct {
	topicName   string
	description string
	fields      []string
}

// NewEvent creates a typed event. The payload field names are taken from the
// json tags of T and exposed through Fields for documentation.
func NewEvent[T any](name string, description string) Event[T] {
	var zero T
	t := reflect.TypeOf(zero)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	fields := make([]string, 0)
	if t != nil && t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			tag := t.Field(i).Tag.Get("json")
			if tag == "" || tag == "-" {
				continue
			}
			fieldName, _, _ := strings.Cut(tag, ",")
			fields = append(fields, fieldName)
		}
	}

	return Event[T]{
		topicName:   name,
		description: description,
		fields:      fields,
	}
}

// Name returns the topic name.
func (e Event[T]) Name() string {
	return e.topicName
}

// Description returns the human readable description of the topic.
func (e Event[T]) Description() string {
	return e.description
}

// Fields returns the json field names of the payload.
func (e Event[T]) Fields() []string {
	return e.fields
}

// Decode unmarshals a received message into the event payload.
func (e Event[T]) Decode(msg Message) (T, error) {
	var payload T
	err := json.Unmarshal(msg.Payload, &payload)
	return payload, err
}

// Publish sends a typed event. The compiler ensures 'payload' matches 'T'.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.Publish(ctx, Message{
		Topic:   event.Name(),
		Payload: data,
	})
}
