package services

import (
	"context"
	"github.com/maxaizer/placement-matcher/internal/logger"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"strconv"
	"sync"
	"time"
)

// RunLock keeps a single match run in flight per job. TryLock returns ok=false
// when another run already holds the job.
type RunLock interface {
	TryLock(ctx context.Context, jobID int, owner string) (unlock func(), ok bool, err error)
}

type LocalRunLock struct {
	mu      sync.Mutex
	running map[int]string
}

func NewLocalRunLock() *LocalRunLock {
	return &LocalRunLock{running: map[int]string{}}
}

func (l *LocalRunLock) TryLock(_ context.Context, jobID int, owner string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.running[jobID]; busy {
		return nil, false, nil
	}
	l.running[jobID] = owner

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.running[jobID] == owner {
			delete(l.running, jobID)
		}
	}, true, nil
}

// releaseScript deletes the key only while it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// extendScript pushes the expiry forward only while the caller still owns the key.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// RedisRunLock shares run ownership between service instances. The key is
// extended every ttl/3 while the run holds it, so the TTL only bounds how long
// a crashed instance keeps a job.
type RedisRunLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRunLock(client *redis.Client, ttl time.Duration) *RedisRunLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisRunLock{client: client, ttl: ttl}
}

func runLockKey(jobID int) string {
	return "matcher:run:" + strconv.Itoa(jobID)
}

func (l *RedisRunLock) TryLock(ctx context.Context, jobID int, owner string) (func(), bool, error) {
	key := runLockKey(jobID)

	ok, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}

	stopRenewal := make(chan struct{})
	renewalDone := make(chan struct{})
	go l.keepAlive(key, owner, stopRenewal, renewalDone)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopRenewal)
			<-renewalDone

			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, owner).Err(); err != nil {
				log.WithField(logger.ErrorTypeField, logger.ErrorTypeLock).
					Errorf("failed to release run lock %s: %v", key, err)
			}
		})
	}, true, nil
}

func (l *RedisRunLock) keepAlive(key, owner string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(max(l.ttl/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			extendCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			extended, err := extendScript.Run(extendCtx, l.client, []string{key}, owner, l.ttl.Milliseconds()).Int()
			cancel()

			if err != nil {
				log.WithField(logger.ErrorTypeField, logger.ErrorTypeLock).
					Warnf("failed to extend run lock %s: %v", key, err)
				continue
			}
			if extended == 0 {
				log.WithField(logger.ErrorTypeField, logger.ErrorTypeLock).
					Errorf("run lock %s was lost to another owner", key)
				return
			}
		}
	}
}
