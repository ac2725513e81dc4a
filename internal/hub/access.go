package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/gatat123/studioo-backend-sub000/internal/client"
	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

// AccessController decides whether an identity may join a topic. A pure
// predicate over the membership oracle: no side effects, and never cached
// beyond the single join decision since membership can change between
// joins. Oracle failures deny the join (fail closed).
type AccessController struct {
	oracle client.MembershipOracle
	logger *zap.Logger
}

func NewAccessController(oracle client.MembershipOracle, logger *zap.Logger) *AccessController {
	return &AccessController{oracle: oracle, logger: logger}
}

var topicEntity = map[model.TopicKind]client.EntityKind{
	model.TopicProject:  client.EntityProject,
	model.TopicScene:    client.EntityScene,
	model.TopicImage:    client.EntityImage,
	model.TopicChannel:  client.EntityChannel,
	model.TopicWorkTask: client.EntityWorkTask,
}

func (a *AccessController) CanJoin(ctx context.Context, identity model.Identity, topic model.Topic) bool {
	kind, entityID, err := model.ParseTopic(topic.String())
	if err != nil {
		return false
	}

	// The per-identity direct topic admits only its owner.
	if kind == model.TopicUser {
		return entityID == identity.UserID
	}

	if identity.IsAdmin {
		return true
	}

	entityKind, ok := topicEntity[kind]
	if !ok {
		return false
	}

	isMember, err := a.oracle.IsMember(ctx, identity.UserID, entityKind, entityID)
	if err != nil {
		a.logger.Warn("membership oracle unavailable, denying join",
			zap.String("topic", topic.String()),
			zap.String("user_id", identity.UserID.String()),
			zap.Error(err))
		return false
	}
	return isMember
}
