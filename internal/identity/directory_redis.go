package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/park285/Cheese-Chess-Arena/internal/obslog"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const ttlIdentity = 30 * 24 * time.Hour

// RedisDirectory stores arena:user:<id> -> display name and
// arena:username:<lowercased name> -> id.
type RedisDirectory struct{ rdb *redis.Client }

func NewRedisDirectory(rdb *redis.Client) *RedisDirectory { return &RedisDirectory{rdb: rdb} }

// releaseName drops a username mapping only while it still points at the
// releasing user.
const releaseName = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) end return 0`

func keyUser(id string) string    { return "arena:user:" + strings.TrimSpace(id) }
func keyUsername(n string) string { return "arena:username:" + normalize(n) }

func (d *RedisDirectory) Register(ctx context.Context, userID, username string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = userID
	}
	prev, err := d.rdb.Get(ctx, keyUser(userID)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("identity lookup: %w", err)
	}
	_, err = d.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prev != "" && normalize(prev) != normalize(username) {
			pipe.Eval(ctx, releaseName, []string{keyUsername(prev)}, userID)
		}
		pipe.Set(ctx, keyUser(userID), username, ttlIdentity)
		pipe.Set(ctx, keyUsername(username), userID, ttlIdentity)
		return nil
	})
	if err != nil {
		return fmt.Errorf("identity register: %w", err)
	}
	return nil
}

func (d *RedisDirectory) ResolveByUsername(ctx context.Context, username string) (string, error) {
	if normalize(username) == "" {
		return "", nil
	}
	id, err := d.rdb.Get(ctx, keyUsername(username)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("identity resolve: %w", err)
	}
	return id, nil
}

func (d *RedisDirectory) DisplayName(ctx context.Context, userID string) string {
	name, err := d.rdb.Get(ctx, keyUser(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			obslog.L().Warn("identity_display_name_error", zap.String("user", userID), zap.Error(err))
		}
		return userID
	}
	return name
}
