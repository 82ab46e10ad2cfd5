package services

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/framecraft-studio/framecraft-api/models"
)

// ErrGhostSession is returned when a valid session token has no matching
// profile row. The session must be discarded; the token alone is never
// trusted.
var ErrGhostSession = errors.New("session has no matching profile")

// SyncCache remembers which principals were already reconciled during
// this process lifetime, bounding redundant verified-flag syncs. It is an
// explicit dependency of the IdentityService, not package state, so tests
// and future per-session scoping can swap it.
type SyncCache struct {
	mu     sync.Mutex
	synced map[uint]bool
}

// NewSyncCache creates an empty cache.
func NewSyncCache() *SyncCache {
	return &SyncCache{synced: make(map[uint]bool)}
}

// Seen reports whether the user was already reconciled.
func (c *SyncCache) Seen(userID uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.synced[userID]
}

// Mark records the user as reconciled.
func (c *SyncCache) Mark(userID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.synced[userID] = true
}

// Forget drops one entry, forcing the next request to re-sync.
func (c *SyncCache) Forget(userID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.synced, userID)
}

// TokenIdentity is what the session token asserts about its holder.
type TokenIdentity struct {
	UserID        uint
	Role          string
	EmailVerified bool
}

// IdentityService resolves the profile behind a session token and keeps
// the two sources of truth reconciled: the profile row wins for the role,
// the user row wins for email verification.
type IdentityService struct {
	db       *gorm.DB
	cache    *SyncCache
	failOpen bool
}

// NewIdentityService creates an IdentityService. failOpen controls what
// happens when the profile lookup errors (not when it finds nothing):
// true degrades to trusting the token, false rejects the request.
func NewIdentityService(db *gorm.DB, cache *SyncCache, failOpen bool) *IdentityService {
	return &IdentityService{db: db, cache: cache, failOpen: failOpen}
}

// Resolve returns the profile for the token's principal.
//
// A live token whose profile row is gone is a ghost session and always
// fails, regardless of the fail-open setting. A lookup that errors for
// any other reason (connectivity, policy) degrades to the token's own
// claims when fail-open is on: a transient backend error should not evict
// a legitimate user. The trade-off is documented in the config: a
// misconfigured backend can mask a truly deleted account until the error
// clears.
func (s *IdentityService) Resolve(identity TokenIdentity) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.Where("user_id = ?", identity.UserID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGhostSession
		}
		if s.failOpen {
			log.Warnf("Profile lookup failed for user %d, trusting session token: %v", identity.UserID, err)
			return &models.Profile{
				UserID:        identity.UserID,
				Role:          identity.Role,
				EmailVerified: identity.EmailVerified,
			}, nil
		}
		return nil, err
	}

	// Reconcile the verification flag once per principal per process:
	// the user row (set by the OTP flow) is authoritative.
	if !s.cache.Seen(identity.UserID) {
		var user models.User
		if err := s.db.First(&user, identity.UserID).Error; err == nil {
			if user.EmailVerified != profile.EmailVerified {
				if err := s.db.Model(&profile).Update("email_verified", user.EmailVerified).Error; err != nil {
					log.Warnf("Failed to sync email_verified for user %d: %v", identity.UserID, err)
				} else {
					profile.EmailVerified = user.EmailVerified
				}
			}
		}
		s.cache.Mark(identity.UserID)
	}

	return &profile, nil
}
