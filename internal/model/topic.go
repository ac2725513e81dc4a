package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TopicKind identifies the entity class a topic broadcasts for.
type TopicKind string

const (
	TopicProject  TopicKind = "project"
	TopicScene    TopicKind = "scene"
	TopicImage    TopicKind = "image"
	TopicChannel  TopicKind = "channel"
	TopicWorkTask TopicKind = "work-task"
	TopicUser     TopicKind = "user"
)

// Topic is a broadcast scope key, e.g. "project:<uuid>" or "scene:<uuid>".
// The per-identity "user:<uuid>" topic is used for direct delivery.
type Topic string

func ProjectTopic(id uuid.UUID) Topic  { return Topic(fmt.Sprintf("project:%s", id)) }
func SceneTopic(id uuid.UUID) Topic    { return Topic(fmt.Sprintf("scene:%s", id)) }
func ImageTopic(id uuid.UUID) Topic    { return Topic(fmt.Sprintf("image:%s", id)) }
func ChannelTopic(id uuid.UUID) Topic  { return Topic(fmt.Sprintf("channel:%s", id)) }
func WorkTaskTopic(id uuid.UUID) Topic { return Topic(fmt.Sprintf("work-task:%s", id)) }
func UserTopic(id uuid.UUID) Topic     { return Topic(fmt.Sprintf("user:%s", id)) }

// ParseTopic splits a raw topic string into its kind and entity id.
func ParseTopic(raw string) (TopicKind, uuid.UUID, error) {
	idx := strings.LastIndex(raw, ":")
	if idx <= 0 || idx == len(raw)-1 {
		return "", uuid.Nil, fmt.Errorf("malformed topic %q", raw)
	}

	kind := TopicKind(raw[:idx])
	switch kind {
	case TopicProject, TopicScene, TopicImage, TopicChannel, TopicWorkTask, TopicUser:
	default:
		return "", uuid.Nil, fmt.Errorf("unknown topic kind %q", raw[:idx])
	}

	id, err := uuid.Parse(raw[idx+1:])
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid topic id in %q: %w", raw, err)
	}

	return kind, id, nil
}

// Kind returns the topic's kind, or "" if the topic is malformed.
func (t Topic) Kind() TopicKind {
	kind, _, err := ParseTopic(string(t))
	if err != nil {
		return ""
	}
	return kind
}

// EntityID returns the entity id portion of the topic.
func (t Topic) EntityID() uuid.UUID {
	_, id, err := ParseTopic(string(t))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func (t Topic) String() string {
	return string(t)
}
