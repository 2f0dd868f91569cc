package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/vendorflow-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	assert.Equal(t, "projects/p1/topics/vf-domain", TopicResourceName("p1", " vf-domain "))
	assert.Equal(t, "projects/other/topics/t", TopicResourceName("p1", "projects/other/topics/t"))
	assert.Empty(t, TopicResourceName("", "vf-domain"))
	assert.Empty(t, TopicResourceName("p1", " "))
}

func TestTopicNames(t *testing.T) {
	assert.Nil(t, topicNames(config.PubSubConfig{NotificationTopic: "n"}))
	assert.Equal(t, []string{"d"}, topicNames(config.PubSubConfig{DomainTopic: "d"}))
	assert.Equal(t, []string{"d", "n"}, topicNames(config.PubSubConfig{DomainTopic: "d", NotificationTopic: "n"}))
}

func TestNewPublisherNil(t *testing.T) {
	assert.Nil(t, NewPublisher(nil))
}

func TestSubscriptionResourceName(t *testing.T) {
	assert.Equal(t, "projects/p1/subscriptions/vf-domain-notifications", SubscriptionResourceName("p1", "vf-domain-notifications"))
	assert.Equal(t, "projects/other/subscriptions/s", SubscriptionResourceName("p1", "projects/other/subscriptions/s"))
	assert.Empty(t, SubscriptionResourceName("", "s"))
}
