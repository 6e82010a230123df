// Package activitymap flattens auth activity events into records that
// audit logs and downstream consumers can store without knowing the
// auth types.
package activitymap

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-course-auth"
)

const (
	MetadataKeyActorType = "actor_type"
	MetadataKeyFromRole  = "from_role"
	MetadataKeyToRole    = "to_role"
	// MetadataKeyApplicationID is where application events carry their record id
	MetadataKeyApplicationID = "application_id"
)

const (
	ObjectTypeUser        = "user"
	ObjectTypeApplication = "trainer_application"
	ObjectTypeSession     = "session"
)

const (
	defaultChannel = "auth"
	defaultActorID = "system"
)

// Record is the transport agnostic shape of an activity event
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Option func(*options)

type options struct {
	channel       string
	actorFallback string
	now           func() time.Time
}

// WithChannel sets the channel stamped on every record
func WithChannel(channel string) Option {
	return func(o *options) {
		if c := strings.TrimSpace(channel); c != "" {
			o.channel = c
		}
	}
}

// WithActorFallback is used when an event names neither an actor nor a user
func WithActorFallback(actorID string) Option {
	return func(o *options) {
		o.actorFallback = strings.TrimSpace(actorID)
	}
}

func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.now = clock
		}
	}
}

// Normalize converts event into a Record
func Normalize(event auth.ActivityEvent, opts ...Option) Record {
	o := options{
		channel:       defaultChannel,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = o.now()
	}

	objectType, objectID := object(event)

	return Record{
		ActorID: firstNonEmpty(
			strings.TrimSpace(event.Actor.ID),
			strings.TrimSpace(event.UserID),
			o.actorFallback,
		),
		Verb:       string(event.EventType),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    o.channel,
		Metadata:   metadata(event),
		OccurredAt: occurredAt.UTC(),
	}
}

// object picks what the event is about. Application events point at the
// application when its id is known, failed authentications at the session.
func object(event auth.ActivityEvent) (string, string) {
	switch event.EventType {
	case auth.ActivityEventApplicationSubmitted, auth.ActivityEventApplicationDecided:
		if id, ok := event.Metadata[MetadataKeyApplicationID].(string); ok && id != "" {
			return ObjectTypeApplication, id
		}
	case auth.ActivityEventAuthFailure:
		return ObjectTypeSession, ""
	}
	return ObjectTypeUser, strings.TrimSpace(event.UserID)
}

func metadata(event auth.ActivityEvent) map[string]any {
	out := make(map[string]any, len(event.Metadata)+3)
	for k, v := range event.Metadata {
		out[k] = v
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if _, exists := out[MetadataKeyActorType]; !exists {
			out[MetadataKeyActorType] = actorType
		}
	}

	if event.FromRole != "" {
		out[MetadataKeyFromRole] = event.FromRole.String()
	}

	if event.ToRole != "" {
		out[MetadataKeyToRole] = event.ToRole.String()
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// LogSink writes every event as a normalized record to logger
func LogSink(logger auth.Logger, opts ...Option) auth.ActivitySink {
	if logger == nil {
		logger = auth.DefaultLogger()
	}
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		r := Normalize(event, opts...)
		logger.Info("activity",
			"verb", r.Verb,
			"actor_id", r.ActorID,
			"object_type", r.ObjectType,
			"object_id", r.ObjectID,
			"channel", r.Channel,
			"metadata", r.Metadata,
		)
		return nil
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
