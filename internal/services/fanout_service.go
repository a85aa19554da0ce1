package services

import (
	"context"
	"log"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"flowbase/internal/logging"
	"flowbase/internal/models"
)

// FanOutStore is the persistence the fan-out workers need
type FanOutStore interface {
	ListMembersByProject(ctx context.Context, projectID primitive.ObjectID) ([]*models.Member, error)
	CreateNotification(ctx context.Context, notification *models.Notification) error
}

// Template is the content of one notification row
type Template struct {
	Type        models.NotificationType
	Message     string
	Description string
}

// Delivery addresses one template to a recipient set. Recipients, when set,
// is used as is; otherwise AllMembers resolves the project's current members.
// The actor and Exclude are always removed.
type Delivery struct {
	Recipients []primitive.ObjectID
	AllMembers bool
	Exclude    []primitive.ObjectID
	Template   Template
}

// Activity is a committed mutation waiting to be fanned out
type Activity struct {
	Verb        string
	ActorID     primitive.ObjectID
	ProjectID   primitive.ObjectID
	TaskID      *primitive.ObjectID
	Metadata    map[string]any
	Deliveries  []Delivery
	DataChanged string // project_data_updated kind, empty for none
}

// ActivityQueue accepts committed activities for fan-out
type ActivityQueue interface {
	Enqueue(a Activity)
}

// FanOutService turns activities into notification rows and live events on a
// bounded worker pool, after the triggering mutation has committed.
type FanOutService struct {
	store   FanOutStore
	hub     *LiveHub
	metrics *Metrics

	queue   chan Activity
	pending sync.WaitGroup
	workers sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewFanOutService starts workers goroutines draining a queue of queueSize activities
func NewFanOutService(store FanOutStore, hub *LiveHub, metrics *Metrics, workers, queueSize int) *FanOutService {
	if workers < 1 {
		workers = 1
	}
	s := &FanOutService{
		store:   store,
		hub:     hub,
		metrics: metrics,
		queue:   make(chan Activity, queueSize),
	}
	for i := 0; i < workers; i++ {
		s.workers.Add(1)
		go s.work()
	}
	log.Printf("✅ [FANOUT] Started %d workers (queue size %d)", workers, queueSize)
	return s
}

// Enqueue schedules an activity. It blocks only while the queue is full.
func (s *FanOutService) Enqueue(a Activity) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		log.Printf("⚠️  [FANOUT] Dropping %s activity after shutdown", a.Verb)
		return
	}
	s.pending.Add(1)
	s.metrics.queueDepth(1)
	s.queue <- a
}

// Wait blocks until every enqueued activity has been processed
func (s *FanOutService) Wait() {
	s.pending.Wait()
}

// Close stops accepting activities, drains the queue and stops the workers
func (s *FanOutService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.workers.Wait()
	log.Println("✅ [FANOUT] Workers stopped")
}

func (s *FanOutService) work() {
	defer s.workers.Done()
	for a := range s.queue {
		s.metrics.queueDepth(-1)
		s.process(a)
		s.pending.Done()
	}
}

func (s *FanOutService) process(a Activity) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := logging.WithActivity(a.Verb, a.ProjectID.Hex(), a.ActorID.Hex())

	var members []primitive.ObjectID
	membersLoaded := false

	for _, d := range a.Deliveries {
		recipients := d.Recipients
		if recipients == nil && d.AllMembers {
			if !membersLoaded {
				membersLoaded = true
				list, err := s.store.ListMembersByProject(ctx, a.ProjectID)
				if err != nil {
					logger.Error("fan-out member lookup failed, skipping member deliveries", "error", err)
				}
				for _, m := range list {
					members = append(members, m.UserID)
				}
			}
			recipients = members
		}

		for _, userID := range resolveRecipients(recipients, a.ActorID, d.Exclude) {
			s.notify(ctx, logger, a, d.Template, userID)
		}
	}

	if a.DataChanged != "" {
		s.hub.Publish(ctx, ProjectRoom(a.ProjectID.Hex()), models.ServerMessage{
			Type: models.EventProjectDataUpdated,
			Data: models.DataChanged{Type: a.DataChanged, ProjectID: a.ProjectID.Hex()},
		})
	}
}

func (s *FanOutService) notify(ctx context.Context, logger *slog.Logger, a Activity, t Template, userID primitive.ObjectID) {
	projectID := a.ProjectID
	n := &models.Notification{
		UserID:      userID,
		Type:        t.Type,
		Message:     t.Message,
		Description: t.Description,
		ProjectID:   &projectID,
		TaskID:      a.TaskID,
		Metadata:    a.Metadata,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		s.metrics.notificationWritten(false)
		logger.Error("notification write failed", "recipient", userID.Hex(), "error", err)
		return
	}
	s.metrics.notificationWritten(true)

	s.hub.Publish(ctx, UserRoom(userID.Hex()), models.ServerMessage{
		Type: models.EventNotificationReceived,
		Data: n,
	})
}

// resolveRecipients removes the actor and the exclusions, keeping first-seen order
func resolveRecipients(candidates []primitive.ObjectID, actor primitive.ObjectID, exclude []primitive.ObjectID) []primitive.ObjectID {
	skip := make(map[primitive.ObjectID]struct{}, len(exclude)+1)
	skip[actor] = struct{}{}
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	out := make([]primitive.ObjectID, 0, len(candidates))
	for _, id := range candidates {
		if _, ok := skip[id]; ok {
			continue
		}
		skip[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
