package yt

import (
	"context"
	"os"
	"time"

	"Nocturne/utils"

	"github.com/Strum355/log"
	"github.com/redis/go-redis/v9"
)

// StartCacheSweeper removes cached audio files whose presence key has
// expired. Runs hourly until the context is cancelled.
func StartCacheSweeper(ctx context.Context, rdb *redis.Client) {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepCache(ctx, rdb)
			}
		}
	}()
}

func sweepCache(ctx context.Context, rdb *redis.Client) {
	log.Info("Beginning audio cache cleanup")
	if _, err := os.Stat("cache"); os.IsNotExist(err) {
		return
	}

	files, _ := os.ReadDir("cache")
	removed := 0
	for _, file := range files {
		id := utils.AudioID("cache/" + file.Name())
		_, err := rdb.Get(ctx, "audio:"+id).Result()
		if err == redis.Nil {
			if os.Remove("cache/"+file.Name()) == nil {
				removed++
			}
		}
	}
	log.WithFields(log.Fields{"removed": removed}).Info("Audio cache cleanup completed")
}

// ClearCache wipes the audio cache directory entirely, used on shutdown.
func ClearCache() {
	if _, err := os.Stat("cache"); os.IsNotExist(err) {
		return
	}
	files, _ := os.ReadDir("cache")
	for _, file := range files {
		_ = os.RemoveAll("cache/" + file.Name())
	}
	log.Info("Audio cache cleared")
}
