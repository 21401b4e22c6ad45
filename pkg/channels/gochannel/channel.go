// Package gochannel provides an in-memory watermill channel for local
// development and tests.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// CreateChannel creates a GoChannel-based publisher and subscriber. The
// same instance backs both sides.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            1000,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		logger,
	)

	return pubSub, pubSub, nil
}

// CreateTestChannel creates a smaller, blocking GoChannel setup so tests
// can assert on delivered messages deterministically.
func CreateTestChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            10,
			Persistent:                     true,
			BlockPublishUntilSubscriberAck: true,
		},
		logger,
	)

	return pubSub, pubSub, nil
}
