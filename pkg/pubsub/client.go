// Package pubsub owns the Google Cloud Pub/Sub connection used to fan
// customer notifications out of the outbox.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/artisancrate/billing-engine/pkg/config"
	"github.com/artisancrate/billing-engine/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub notification topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client wraps a v2 client with one cached, ordering-enabled publisher per
// topic.
type Client struct {
	client    *pubsub.Client
	projectID string
	topics    []string
	settings  config.PubSubConfig

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects to Pub/Sub and fails unless every configured topic
// already exists. Topics are provisioned outside the service.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	topics := topicNames(cfg)
	if len(topics) == 0 {
		return nil, errNoTopics
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:     psClient,
		projectID:  projectID,
		topics:     topics,
		settings:   cfg,
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", topics), "pubsub client initialized")
	}
	return c, nil
}

func topicNames(cfg config.PubSubConfig) []string {
	var names []string
	if topic := strings.TrimSpace(cfg.NotificationTopic); topic != "" {
		names = append(names, topic)
	}
	return names
}

// Ping checks that every configured topic is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	for _, topic := range c.topics {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{
			Topic: TopicResourceName(c.projectID, topic),
		})
		switch {
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("topic %q does not exist", topic)
		case err != nil:
			return fmt.Errorf("checking topic %q: %w", topic, err)
		}
	}
	return nil
}

// Publisher returns the cached publisher for a topic ID or resource name,
// or nil when the name cannot be resolved.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := TopicResourceName(c.projectID, name)
	if fullName == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.publishers[fullName]; ok {
		return pub
	}
	pub := c.client.Publisher(fullName)
	pub.EnableMessageOrdering = true
	if c.settings.PublishDelay > 0 {
		pub.PublishSettings.DelayThreshold = c.settings.PublishDelay
	}
	if c.settings.PublishBatchCount > 0 {
		pub.PublishSettings.CountThreshold = c.settings.PublishBatchCount
	}
	c.publishers[fullName] = pub
	return pub
}

// Close flushes outstanding publishes and releases the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, pub := range c.publishers {
		pub.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}

// TopicResourceName expands a bare topic ID into projects/<p>/topics/<id>.
// Full resource names pass through untouched.
func TopicResourceName(projectID, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/"):
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/topics/" + name
}
