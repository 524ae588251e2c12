// Package chat relays activity comments to connected websocket viewers.
//
// Viewers join one group per activity. Comments sent by any viewer go through a
// Publisher (Kafka or in-process) and come back through Deliver, which numbers them
// per activity, drops duplicates and fans them out to the group.
package chat

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"example.com/reactivities/internal/domain"
	"example.com/reactivities/internal/errorx"
	"example.com/reactivities/internal/events"
)

const (
	defaultDedupeWindow = 256
	defaultFeedTTL      = 10 * time.Minute
	maxCommentLength    = 2000
)

// Directory resolves the activities and authors comments refer to.
type Directory interface {
	GetActivity(ctx context.Context, id string) (*domain.Activity, error)
	GetProfile(ctx context.Context, username string) (*domain.Profile, error)
}

// Publisher hands a stamped comment to the channel that eventually calls Hub.Deliver
// on every node.
type Publisher interface {
	Publish(ctx context.Context, comment Comment) error
}

// Option configures a Hub.
type Option func(*Hub)

// WithPublisher routes outgoing comments through p instead of the in-process loopback.
func WithPublisher(p Publisher) Option {
	return func(h *Hub) {
		if p != nil {
			h.publisher = p
		}
	}
}

// WithLogger overrides the hub logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithClock replaces the time source used to stamp comments.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// WithDedupeWindow sets how many recent comment IDs are remembered per activity.
func WithDedupeWindow(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.dedupeWindow = size
		}
	}
}

// WithFeedTTL sets how long an activity's sequence and dedupe window outlive its last viewer.
func WithFeedTTL(ttl time.Duration) Option {
	return func(h *Hub) {
		if ttl > 0 {
			h.feedTTL = ttl
		}
	}
}

// Hub tracks activity groups and fans comments out to their members.
type Hub struct {
	directory    Directory
	publisher    Publisher
	logger       *log.Logger
	now          func() time.Time
	dedupeWindow int
	feedTTL      time.Duration

	mu      sync.Mutex
	clients map[*Client]struct{}
	groups  map[string]map[*Client]struct{}
	feeds   map[string]*feed
}

type feed struct {
	seq  int64
	seen *window
	// idleSince is set while the activity has no viewers.
	idleSince time.Time
}

// NewHub constructs a Hub. Without WithPublisher comments loop straight back into Deliver.
func NewHub(directory Directory, opts ...Option) *Hub {
	h := &Hub{
		directory:    directory,
		logger:       log.New(log.Writer(), "[chat] ", log.LstdFlags),
		now:          func() time.Time { return time.Now().UTC() },
		dedupeWindow: defaultDedupeWindow,
		feedTTL:      defaultFeedTTL,
		clients:      make(map[*Client]struct{}),
		groups:       make(map[string]map[*Client]struct{}),
		feeds:        make(map[string]*feed),
	}
	h.publisher = loopback{hub: h}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Send validates an inbound comment, stamps its author and time, and publishes it.
// The comment reaches viewers only once the publisher delivers it back.
func (h *Hub) Send(ctx context.Context, comment Comment) (Comment, error) {
	comment.Body = strings.TrimSpace(comment.Body)
	if errs := validateComment(comment); errs != nil {
		return Comment{}, errorx.Validation(errs)
	}
	if comment.Username == "" {
		return Comment{}, errorx.Unauthorized("no acting user")
	}

	if _, err := h.directory.GetActivity(ctx, comment.ActivityID); err != nil {
		return Comment{}, err
	}
	author, err := h.directory.GetProfile(ctx, comment.Username)
	if err != nil {
		return Comment{}, err
	}
	comment.DisplayName = author.DisplayName
	comment.Image = author.Image
	comment.CreatedAt = h.now()
	comment.Seq = 0

	if err := ctx.Err(); err != nil {
		return Comment{}, err
	}
	if err := h.publisher.Publish(ctx, comment); err != nil {
		return Comment{}, errorx.Internal(errorx.Wrap(err, "publish comment"))
	}
	return comment, nil
}

// Deliver appends comment to its activity's feed and broadcasts it to the group.
// It reports false when the comment ID was already delivered.
func (h *Hub) Deliver(comment Comment) (Comment, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, ok := h.feeds[comment.ActivityID]
	if !ok {
		f = &feed{seen: newWindow(h.dedupeWindow)}
		if len(h.groups[comment.ActivityID]) == 0 {
			f.idleSince = h.now()
		}
		h.feeds[comment.ActivityID] = f
	}
	if !f.seen.add(comment.ID) {
		duplicateCounter.Inc()
		return Comment{}, false
	}
	f.seq++
	comment.Seq = f.seq

	frame, err := encodeFrame(EventReceiveComment, comment)
	if err != nil {
		h.logger.Printf("encode comment %s: %v", comment.ID, err)
		return comment, true
	}
	h.broadcastLocked(comment.ActivityID, frame)
	deliveredCounter.Inc()
	return comment, true
}

// ActivityChanged tells the activity's viewers that it was edited, deleted or that
// its attendee list moved.
func (h *Hub) ActivityChanged(activityID, change string) {
	frame, err := encodeFrame(EventActivityChanged, ActivityChange{ActivityID: activityID, Change: change})
	if err != nil {
		h.logger.Printf("encode activity change: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(activityID, frame)
	if change == events.TypeActivityDeleted {
		delete(h.feeds, activityID)
	}
}

// Join adds c to the activity group after checking the activity exists.
func (h *Hub) Join(ctx context.Context, c *Client, activityID string) error {
	if strings.TrimSpace(activityID) == "" {
		return errorx.Validation(map[string]string{"activityId": "activityId must not be empty"})
	}
	if _, err := h.directory.GetActivity(ctx, activityID); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return nil
	}
	members, ok := h.groups[activityID]
	if !ok {
		members = make(map[*Client]struct{})
		h.groups[activityID] = members
	}
	members[c] = struct{}{}
	c.groups[activityID] = struct{}{}
	if f, ok := h.feeds[activityID]; ok {
		f.idleSince = time.Time{}
	}
	return nil
}

// Leave removes c from the activity group. Leaving a group not joined is a no-op.
func (h *Hub) Leave(c *Client, activityID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, activityID)
}

// GroupSize reports how many clients currently view the activity.
func (h *Hub) GroupSize(activityID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[activityID])
}

// Run evicts idle feeds until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.feedTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.evictIdleFeeds()
		}
	}
}

// evictIdleFeeds drops feeds whose activity has had no viewers for at least the feed TTL.
func (h *Hub) evictIdleFeeds() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	evicted := 0
	for activityID, f := range h.feeds {
		if !f.idleSince.IsZero() && now.Sub(f.idleSince) >= h.feedTTL {
			delete(h.feeds, activityID)
			evicted++
		}
	}
	return evicted
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	connectedGauge.Inc()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}
	for activityID := range c.groups {
		h.leaveLocked(c, activityID)
	}
	delete(h.clients, c)
	c.closed = true
	close(c.send)
	connectedGauge.Dec()
}

// sendTo queues a frame for a single client.
func (h *Hub) sendTo(c *Client, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enqueueLocked(c, frame)
}

func (h *Hub) leaveLocked(c *Client, activityID string) {
	delete(c.groups, activityID)
	if members, ok := h.groups[activityID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, activityID)
			if f, ok := h.feeds[activityID]; ok {
				f.idleSince = h.now()
			}
		}
	}
}

func (h *Hub) broadcastLocked(activityID string, frame []byte) {
	for c := range h.groups[activityID] {
		h.enqueueLocked(c, frame)
	}
}

func (h *Hub) enqueueLocked(c *Client, frame []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- frame:
	default:
		droppedCounter.Inc()
		h.logger.Printf("send buffer full for %s, dropping frame", c.username)
	}
}

func validateComment(c Comment) map[string]string {
	errs := map[string]string{}
	if _, err := uuid.Parse(c.ID); err != nil {
		errs["id"] = "id must be a UUID"
	}
	if strings.TrimSpace(c.ActivityID) == "" {
		errs["activityId"] = "activityId must not be empty"
	}
	switch {
	case c.Body == "":
		errs["body"] = "body must not be empty"
	case utf8.RuneCountInString(c.Body) > maxCommentLength:
		errs["body"] = "body is too long"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

type loopback struct {
	hub *Hub
}

func (l loopback) Publish(_ context.Context, comment Comment) error {
	l.hub.Deliver(comment)
	return nil
}
