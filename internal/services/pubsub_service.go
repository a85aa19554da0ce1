package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"

	"flowbase/internal/models"
)

const liveChannelPrefix = "flowbase:live:"

// PubSubService mirrors live-channel events across instances over Redis pub/sub
type PubSubService struct {
	client     *redis.Client
	hub        *LiveHub
	pubsub     *redis.PubSub
	instanceID string
	ctx        context.Context
	cancel     context.CancelFunc
}

// PubSubMessage is the envelope published on flowbase:live:<room>
type PubSubMessage struct {
	InstanceID string               `json:"instanceId"` // Source instance ID
	Room       string               `json:"room"`
	Message    models.ServerMessage `json:"message"`
}

// NewPubSubService creates a relay for hub
func NewPubSubService(client *redis.Client, hub *LiveHub, instanceID string) *PubSubService {
	ctx, cancel := context.WithCancel(context.Background())
	return &PubSubService{
		client:     client,
		hub:        hub,
		instanceID: instanceID,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to every live room and attaches the relay to the hub
func (s *PubSubService) Start() error {
	s.pubsub = s.client.PSubscribe(s.ctx, liveChannelPrefix+"*")

	// Wait for subscription confirmation
	if _, err := s.pubsub.Receive(s.ctx); err != nil {
		return fmt.Errorf("subscribe live channels: %w", err)
	}

	go s.processMessages()
	s.hub.SetRelay(s)

	log.Printf("✅ [PUBSUB] Started listening for live events (instance: %s)", s.instanceID)
	return nil
}

// Relay publishes msg for the other instances
func (s *PubSubService) Relay(ctx context.Context, room string, msg models.ServerMessage) error {
	data, err := json.Marshal(PubSubMessage{InstanceID: s.instanceID, Room: room, Message: msg})
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, liveChannelPrefix+room, data).Err()
}

func (s *PubSubService) processMessages() {
	ch := s.pubsub.Channel()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handlePayload(msg.Channel, msg.Payload)
		}
	}
}

// handlePayload delivers a relayed event to local connections, skipping our own
func (s *PubSubService) handlePayload(channel, payload string) {
	var message PubSubMessage
	if err := json.Unmarshal([]byte(payload), &message); err != nil {
		log.Printf("⚠️ [PUBSUB] Failed to unmarshal message: %v", err)
		return
	}

	if message.InstanceID == s.instanceID {
		return
	}

	room := message.Room
	if room == "" {
		room = strings.TrimPrefix(channel, liveChannelPrefix)
	}
	s.hub.DeliverLocal(room, message.Message)
}

// Stop stops the pub/sub service
func (s *PubSubService) Stop() error {
	s.hub.SetRelay(nil)
	s.cancel()
	if s.pubsub != nil {
		return s.pubsub.Close()
	}
	return nil
}
