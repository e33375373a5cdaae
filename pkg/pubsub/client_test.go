package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/artisancrate/billing-engine/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project string
		name    string
		want    string
	}{
		{"artisan", "notifications", "projects/artisan/topics/notifications"},
		{"artisan", " notifications ", "projects/artisan/topics/notifications"},
		{"other", "projects/artisan/topics/notifications", "projects/artisan/topics/notifications"},
		{"", "notifications", ""},
		{"artisan", "", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, TopicResourceName(tc.project, tc.name), "%q/%q", tc.project, tc.name)
	}
}

func TestNewClientValidatesConfigBeforeDialing(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{NotificationTopic: "n"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "artisan"}, config.PubSubConfig{NotificationTopic: "  "}, nil)
	require.ErrorIs(t, err, errNoTopics)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	require.Nil(t, c.Publisher("n"))
	require.NoError(t, c.Close())
	require.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
}
