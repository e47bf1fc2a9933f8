// Package sudo holds a verified elevation credential in memory for a
// sliding time window and executes privileged commands on its behalf.
//
// The credential is never persisted, never logged and never included in any
// payload; only the opaque session token and remaining time are exposed.
package sudo

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keti-tsn/trafficd/internal/domain"
)

// DefaultTimeout is the sliding expiry window (15 minutes, reset on use).
const DefaultTimeout = 900 * time.Second

// verifyTimeout bounds the credential verification subprocess.
const verifyTimeout = 5 * time.Second

// ErrBadCredential reports a credential the elevation helper rejected.
var ErrBadCredential = errors.New("incorrect password or sudo not configured")

// Sink receives credential lifecycle events (verified/cleared).
type Sink interface {
	Publish(ev domain.Event)
}

// Session is the process-wide credential session. All methods are safe for
// concurrent use; the check-then-use sequence inside Execute is serialized
// so concurrent privileged calls cannot race past expiry together.
type Session struct {
	mu         sync.Mutex
	verified   bool
	credential string
	token      string
	issuedAt   time.Time
	lastUsed   time.Time

	timeout time.Duration
	elevate []string // elevation helper argv prefix, e.g. ["sudo", "-S"]
	sink    Sink
}

// NewSession creates an empty session with the given sliding window.
func NewSession(timeout time.Duration, sink Sink) *Session {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Session{
		timeout: timeout,
		elevate: []string{"sudo", "-S"},
		sink:    sink,
	}
}

// SetElevateCommand overrides the elevation helper argv (tests substitute a
// stub script).
func (s *Session) SetElevateCommand(argv []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elevate = append([]string(nil), argv...)
}

// Available reports whether the elevation helper exists on this system.
func (s *Session) Available() bool {
	s.mu.Lock()
	helper := s.elevate[0]
	s.mu.Unlock()
	_, err := exec.LookPath(helper)
	return err == nil
}

// Verify runs a minimal privileged no-op with the candidate credential and,
// on success, stores it and opens the session window.
func (s *Session) Verify(candidate string) error {
	s.mu.Lock()
	helper := append([]string(nil), s.elevate...)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	argv := append(helper, "echo", "ok")
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(candidate + "\n")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return domain.ErrCommandTimeout
	}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return errors.New("elevation mechanism unavailable")
		}
		return ErrBadCredential
	}

	now := time.Now()
	s.mu.Lock()
	s.verified = true
	s.credential = candidate
	s.token = uuid.New().String()
	s.issuedAt = now
	s.lastUsed = now
	s.mu.Unlock()

	log.Printf("Sudo credential verified, session opened")
	if s.sink != nil {
		s.sink.Publish(domain.NewEvent(domain.ToolCredential, domain.EventStarted, map[string]any{
			"message": "sudo session opened",
		}))
	}
	return nil
}

// IsValid reports whether a verified, unexpired credential is held. It is
// read-only: it does not refresh the sliding window.
func (s *Session) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validLocked()
}

func (s *Session) validLocked() bool {
	if !s.verified || s.credential == "" {
		return false
	}
	return time.Since(s.lastUsed) <= s.timeout
}

// use performs the serialized check-then-refresh and returns the credential.
// Expiry detected here wipes the credential and notifies observers, so the
// event stream reflects the lapse without waiting for a status poll.
func (s *Session) use() (string, error) {
	s.mu.Lock()
	if !s.validLocked() {
		expired := s.verified
		if expired {
			s.clearLocked()
		}
		s.mu.Unlock()
		if expired {
			log.Printf("Sudo session expired")
			if s.sink != nil {
				s.sink.Publish(domain.NewEvent(domain.ToolCredential, domain.EventStopped, map[string]any{
					"message": "sudo session expired",
				}))
			}
		}
		return "", domain.ErrNoValidSession
	}
	s.lastUsed = time.Now()
	credential := s.credential
	s.mu.Unlock()
	return credential, nil
}

// Execute runs argv through the elevation helper with the stored credential
// on stdin. Use refreshes the sliding window; the check itself does not.
func (s *Session) Execute(argv []string, timeout time.Duration) (stdout, stderr string, err error) {
	credential, err := s.use()
	if err != nil {
		return "", "", err
	}

	s.mu.Lock()
	helper := append([]string(nil), s.elevate...)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	full := append(helper, argv...)
	cmd := exec.CommandContext(ctx, full[0], full[1:]...)
	cmd.Stdin = strings.NewReader(credential + "\n")
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return outBuf.String(), errBuf.String(), domain.ErrCommandTimeout
	}
	if runErr != nil {
		return outBuf.String(), errBuf.String(), &domain.CommandError{Stderr: strings.TrimSpace(errBuf.String())}
	}
	return outBuf.String(), errBuf.String(), nil
}

// Command returns a ready-to-start elevated command for a long-running
// privileged subprocess (the caller owns its lifecycle). Refreshes the
// window like Execute.
func (s *Session) Command(argv []string) (*exec.Cmd, error) {
	credential, err := s.use()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	helper := append([]string(nil), s.elevate...)
	s.mu.Unlock()

	full := append(helper, argv...)
	cmd := exec.Command(full[0], full[1:]...)
	cmd.Stdin = strings.NewReader(credential + "\n")
	return cmd, nil
}

// Clear wipes the credential and token from memory. Idempotent.
func (s *Session) Clear() {
	s.mu.Lock()
	wasVerified := s.verified
	s.clearLocked()
	s.mu.Unlock()

	if wasVerified {
		log.Printf("Sudo session cleared")
		if s.sink != nil {
			s.sink.Publish(domain.NewEvent(domain.ToolCredential, domain.EventStopped, map[string]any{
				"message": "sudo session cleared",
			}))
		}
	}
}

func (s *Session) clearLocked() {
	s.verified = false
	s.credential = ""
	s.token = ""
}

// Info describes the session without exposing the credential.
func (s *Session) Info() domain.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validLocked() {
		return domain.SessionInfo{Active: false}
	}
	remaining := s.timeout - time.Since(s.lastUsed)
	return domain.SessionInfo{
		Active:        true,
		RemainingTime: int(remaining.Seconds()),
		Token:         s.token,
	}
}
