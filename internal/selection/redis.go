package selection

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"backoffice/internal/core"
)

// Redis shares selections between processes. Each resource is a set stored
// under "<prefix>:selection:<resource>".
type Redis struct {
	client redis.UniversalClient
	prefix string
}

func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "backoffice"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(resource string) string {
	return fmt.Sprintf("%s:selection:%s", r.prefix, resource)
}

// Get returns the selection sorted, since sets carry no order.
func (r *Redis) Get(ctx context.Context, resource string) ([]core.Identifier, error) {
	members, err := r.client.SMembers(ctx, r.key(resource)).Result()
	if err != nil {
		return nil, fmt.Errorf("get selection %s: %w", resource, err)
	}
	sort.Strings(members)
	out := make([]core.Identifier, len(members))
	for i, m := range members {
		out[i] = core.Identifier(m)
	}
	return out, nil
}

func (r *Redis) Select(ctx context.Context, resource string, ids []core.Identifier) error {
	key := r.key(resource)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(ids) > 0 {
			p.SAdd(ctx, key, members(ids)...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("select %s: %w", resource, err)
	}
	return nil
}

var toggleScript = redis.NewScript(`
if redis.call("SISMEMBER", KEYS[1], ARGV[1]) == 1 then
  redis.call("SREM", KEYS[1], ARGV[1])
  return 0
end
redis.call("SADD", KEYS[1], ARGV[1])
return 1
`)

func (r *Redis) Toggle(ctx context.Context, resource string, id core.Identifier) error {
	if err := toggleScript.Run(ctx, r.client, []string{r.key(resource)}, string(id)).Err(); err != nil {
		return fmt.Errorf("toggle %s/%s: %w", resource, id, err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context, resource string) error {
	if err := r.client.Del(ctx, r.key(resource)).Err(); err != nil {
		return fmt.Errorf("clear selection %s: %w", resource, err)
	}
	return nil
}

func (r *Redis) Unselect(ctx context.Context, resource string, ids []core.Identifier) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.client.SRem(ctx, r.key(resource), members(ids)...).Err(); err != nil {
		return fmt.Errorf("unselect %s: %w", resource, err)
	}
	return nil
}

func members(ids []core.Identifier) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
