package coordination

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const instancesKey = "instances"

// instanceActiveWindow is how recent a heartbeat must be for an instance
// to count as alive.
const instanceActiveWindow = 60 * time.Second

// InstanceRegistry tracks running instances in a shared Redis hash for
// operator visibility. Each instance heartbeats periodically; stale
// entries age out of the active view.
type InstanceRegistry struct {
	redis      *redis.Client
	instanceID string
	heartbeat  time.Duration
	version    string
	clock      clockwork.Clock
}

// InstanceInfo holds one instance's registration.
type InstanceInfo struct {
	InstanceID string `json:"instance_id"`
	Timestamp  int64  `json:"timestamp"`
	Version    string `json:"version"`
}

func NewInstanceRegistry(client *redis.Client, instanceID string, heartbeat time.Duration, version string, clock clockwork.Clock) *InstanceRegistry {
	return &InstanceRegistry{
		redis:      client,
		instanceID: instanceID,
		heartbeat:  heartbeat,
		version:    version,
		clock:      clock,
	}
}

// Start registers immediately, heartbeats on the interval, and unregisters
// when ctx is cancelled. Blocks until then.
func (r *InstanceRegistry) Start(ctx context.Context) {
	r.register(ctx)

	ticker := r.clock.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.register(ctx)
		case <-ctx.Done():
			r.unregister()
			return
		}
	}
}

func (r *InstanceRegistry) register(ctx context.Context) {
	info := InstanceInfo{
		InstanceID: r.instanceID,
		Timestamp:  r.clock.Now().Unix(),
		Version:    r.version,
	}
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	r.redis.HSet(ctx, instancesKey, r.instanceID, data)
}

func (r *InstanceRegistry) unregister() {
	r.redis.HDel(context.Background(), instancesKey, r.instanceID)
}

// GetActiveInstances lists instances with a heartbeat inside the active
// window. Surfaced through the readiness endpoint for operators.
func (r *InstanceRegistry) GetActiveInstances(ctx context.Context) ([]string, error) {
	instances, err := r.redis.HGetAll(ctx, instancesKey).Result()
	if err != nil {
		return nil, err
	}

	active := []string{}
	now := r.clock.Now().Unix()
	for instanceID, data := range instances {
		var info InstanceInfo
		if err := json.Unmarshal([]byte(data), &info); err != nil {
			continue
		}
		if now-info.Timestamp < int64(instanceActiveWindow.Seconds()) {
			active = append(active, instanceID)
		}
	}
	return active, nil
}
