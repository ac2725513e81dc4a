package hub

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/gatat123/studioo-backend-sub000/internal/client"
	"github.com/gatat123/studioo-backend-sub000/internal/model"
)

func TestAccess_UserTopicAdmitsOnlyOwner(t *testing.T) {
	access := NewAccessController(&stubOracle{}, zap.NewNop())
	owner := newTestIdentity("owner")
	stranger := newTestIdentity("stranger")
	topic := model.UserTopic(owner.UserID)

	assert.True(t, access.CanJoin(context.Background(), owner, topic))
	assert.False(t, access.CanJoin(context.Background(), stranger, topic))
}

func TestAccess_AdminBypassesOracle(t *testing.T) {
	oracle := &stubOracle{
		IsMemberFunc: func(context.Context, uuid.UUID, client.EntityKind, uuid.UUID) (bool, error) {
			t.Fatal("oracle must not be consulted for admins")
			return false, nil
		},
	}
	access := NewAccessController(oracle, zap.NewNop())
	admin := newTestIdentity("admin")
	admin.IsAdmin = true

	assert.True(t, access.CanJoin(context.Background(), admin, model.ProjectTopic(uuid.New())))
}

func TestAccess_OracleFailureDeniesJoin(t *testing.T) {
	oracle := &stubOracle{
		IsMemberFunc: func(context.Context, uuid.UUID, client.EntityKind, uuid.UUID) (bool, error) {
			return false, errors.New("project-service unreachable")
		},
	}
	access := NewAccessController(oracle, zap.NewNop())

	assert.False(t, access.CanJoin(context.Background(), newTestIdentity("member"), model.SceneTopic(uuid.New())),
		"oracle failure must fail closed")
}

func TestAccess_OracleKindMapping(t *testing.T) {
	var gotKind client.EntityKind
	oracle := &stubOracle{
		IsMemberFunc: func(_ context.Context, _ uuid.UUID, kind client.EntityKind, _ uuid.UUID) (bool, error) {
			gotKind = kind
			return true, nil
		},
	}
	access := NewAccessController(oracle, zap.NewNop())
	identity := newTestIdentity("member")

	cases := []struct {
		topic model.Topic
		kind  client.EntityKind
	}{
		{model.ProjectTopic(uuid.New()), client.EntityProject},
		{model.SceneTopic(uuid.New()), client.EntityScene},
		{model.ImageTopic(uuid.New()), client.EntityImage},
		{model.ChannelTopic(uuid.New()), client.EntityChannel},
		{model.WorkTaskTopic(uuid.New()), client.EntityWorkTask},
	}
	for _, tc := range cases {
		assert.True(t, access.CanJoin(context.Background(), identity, tc.topic))
		assert.Equal(t, tc.kind, gotKind)
	}
}

func TestAccess_MalformedTopicDenied(t *testing.T) {
	access := NewAccessController(&stubOracle{}, zap.NewNop())
	assert.False(t, access.CanJoin(context.Background(), newTestIdentity("x"), model.Topic("not-a-topic")))
}
