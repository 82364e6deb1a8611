package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	SlotConfigKeyPrefix     = "slots:owner:%d"
	LatestSnapshotKeyPrefix = "followers:latest:%d"
	DispatchLeaseKeyPrefix  = "lease:dispatch:post:%d"
)

const (
	SlotConfigTTL     = 10 * time.Minute
	LatestSnapshotTTL = 5 * time.Minute
)

func SlotConfigKey(ownerID uint) string {
	return fmt.Sprintf(SlotConfigKeyPrefix, ownerID)
}

func LatestSnapshotKey(ownerID uint) string {
	return fmt.Sprintf(LatestSnapshotKeyPrefix, ownerID)
}

func DispatchLeaseKey(postID uint) string {
	return fmt.Sprintf(DispatchLeaseKeyPrefix, postID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateSlotConfig(ctx context.Context, ownerID uint) {
	Invalidate(ctx, SlotConfigKey(ownerID))
}

func InvalidateLatestSnapshot(ctx context.Context, ownerID uint) {
	Invalidate(ctx, LatestSnapshotKey(ownerID))
}
