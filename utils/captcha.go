package utils

import (
	"context"
	"sync"
	"time"

	"github.com/mojocn/base64Captcha"
)

const challengeKeyPrefix = "challenge:submit:"

// ChallengeStore keeps submission captcha answers until they are checked once or expire.
// Answers live in Redis when it is configured and in process memory otherwise.
type ChallengeStore struct {
	ttl time.Duration

	mu    sync.Mutex
	local map[string]pendingAnswer
}

type pendingAnswer struct {
	value   string
	expires time.Time
}

var _ base64Captcha.Store = (*ChallengeStore)(nil)

func NewChallengeStore(ttl time.Duration) *ChallengeStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ChallengeStore{ttl: ttl, local: make(map[string]pendingAnswer)}
}

func (s *ChallengeStore) Set(id string, value string) error {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return rc.Set(ctx, challengeKeyPrefix+id, value, s.ttl).Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, p := range s.local {
		if now.After(p.expires) {
			delete(s.local, k)
		}
	}
	s.local[id] = pendingAnswer{value: value, expires: now.Add(s.ttl)}
	return nil
}

// Get returns the stored answer, removing it when clear is set. A missing or
// expired id yields "".
func (s *ChallengeStore) Get(id string, clear bool) string {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		key := challengeKeyPrefix + id
		var (
			v   string
			err error
		)
		if clear {
			v, err = rc.GetDel(ctx, key).Result()
		} else {
			v, err = rc.Get(ctx, key).Result()
		}
		if err != nil {
			return ""
		}
		return v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.local[id]
	if !ok {
		return ""
	}
	if clear {
		delete(s.local, id)
	}
	if time.Now().After(p.expires) {
		return ""
	}
	return p.value
}

func (s *ChallengeStore) Verify(id, answer string, clear bool) bool {
	v := s.Get(id, clear)
	return v != "" && v == answer
}

var challenges = NewChallengeStore(10 * time.Minute)

// GenerateCaptcha creates a digit captcha and returns its id and a PNG data URI.
func GenerateCaptcha() (string, string, error) {
	driver := base64Captcha.NewDriverDigit(40, 120, 5, 0.7, 80)
	id, b64, _, err := base64Captcha.NewCaptcha(driver, challenges).Generate()
	return id, b64, err
}

// VerifyCaptcha checks an answer. The challenge is consumed whether or not it matches.
func VerifyCaptcha(id, answer string) bool {
	if id == "" || answer == "" {
		return false
	}
	return challenges.Verify(id, answer, true)
}
