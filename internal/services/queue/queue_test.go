package queue

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/creatorplatform/gateway-core/pkg/mmodel"
)

func TestPartitionForIsStableByConversationID(t *testing.T) {
	q := &Queue{workers: 3}

	convID := uuid.New()
	job := mmodel.PersistJob{ConversationID: &convID}

	first := q.partitionFor(job)
	second := q.partitionFor(job)

	require.Equal(t, first, second)
	require.GreaterOrEqual(t, first, 0)
	require.Less(t, first, 3)
}

func TestPartitionForFallsBackToUserIDWhenConversationUnknown(t *testing.T) {
	q := &Queue{workers: 3}

	userID := uuid.New()
	job := mmodel.PersistJob{UserID: userID}

	first := q.partitionFor(job)
	second := q.partitionFor(mmodel.PersistJob{UserID: userID})

	require.Equal(t, first, second)
}
