package redis

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"sudooom.cardroom/internal/config"
	"sudooom.cardroom/internal/room"
)

const (
	// RoomKeyPrefix 房间摘要 Hash Key 前缀
	// Key: cardroom:room:{roomId}
	RoomKeyPrefix = "cardroom:room:"

	// RoomIndexKey 活跃房间 ID 集合
	RoomIndexKey = "cardroom:rooms"
)

// BuildRoomKey 构建房间摘要 Key
func BuildRoomKey(roomID string) string {
	return RoomKeyPrefix + roomID
}

// Client Redis 客户端
type Client struct {
	client *redis.Client
	logger *slog.Logger
}

// NewClient 创建 Redis 客户端
func NewClient(cfg config.RedisConfig) *Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	return &Client{
		client: client,
		logger: slog.Default().With("component", "Redis"),
	}
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SaveRoom 写入房间摘要并续期
func (c *Client) SaveRoom(ctx context.Context, stats room.Stats, ttl time.Duration) error {
	key := BuildRoomKey(stats.ID)

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"id":           stats.ID,
		"members":      stats.Members,
		"deckSize":     stats.DeckSize,
		"historyLen":   stats.HistoryLen,
		"host":         stats.Host,
		"createdAt":    stats.CreatedAt.UnixMilli(),
		"lastActivity": stats.LastActivity.UnixMilli(),
	})
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	pipe.SAdd(ctx, RoomIndexKey, stats.ID)
	_, err := pipe.Exec(ctx)
	return err
}

// DeleteRoom 删除房间摘要
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, BuildRoomKey(roomID))
	pipe.SRem(ctx, RoomIndexKey, roomID)
	_, err := pipe.Exec(ctx)
	return err
}

// GetRoom 读取房间摘要，不存在时返回 false
func (c *Client) GetRoom(ctx context.Context, roomID string) (room.Stats, bool, error) {
	fields, err := c.client.HGetAll(ctx, BuildRoomKey(roomID)).Result()
	if err != nil {
		return room.Stats{}, false, err
	}
	if len(fields) == 0 {
		return room.Stats{}, false, nil
	}

	atoi := func(k string) int {
		n, _ := strconv.Atoi(fields[k])
		return n
	}
	millis := func(k string) time.Time {
		n, _ := strconv.ParseInt(fields[k], 10, 64)
		return time.UnixMilli(n)
	}
	return room.Stats{
		ID:           fields["id"],
		Members:      atoi("members"),
		DeckSize:     atoi("deckSize"),
		HistoryLen:   atoi("historyLen"),
		Host:         fields["host"],
		CreatedAt:    millis("createdAt"),
		LastActivity: millis("lastActivity"),
	}, true, nil
}

// Close 关闭连接
func (c *Client) Close() error {
	return c.client.Close()
}
