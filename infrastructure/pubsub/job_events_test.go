package pubsub_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"social-publisher/infrastructure/pubsub"
)

// TestNewJobEvents tests the creation of a new JobEvents emitter
func TestNewJobEvents(t *testing.T) {
	// This is a simple test to ensure the function exists and returns an object
	// We can't do much more without mocking the Google Cloud PubSub client
	jobEvents := pubsub.NewJobEvents(nil, "publish-jobs")
	assert.NotNil(t, jobEvents)
}
