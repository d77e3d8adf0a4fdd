package session

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Suite owns the long-lived session shared by every scenario of a run. It is
// set up once and torn down once; scenarios must never close it themselves.
type Suite struct {
	orch   *Orchestrator
	opts   Options
	shared *Session
}

// NewSuite creates a suite whose shared session is described by opts.
func NewSuite(orch *Orchestrator, opts Options) *Suite {
	return &Suite{orch: orch, opts: opts}
}

// Setup opens the shared session if it is not open yet.
func (s *Suite) Setup(ctx context.Context) (*Session, error) {
	if s.shared != nil {
		return s.shared, nil
	}
	sess, err := s.orch.Open(ctx, s.opts)
	if err != nil {
		return nil, err
	}
	s.shared = sess
	return sess, nil
}

// Shared returns the shared session, or nil before Setup.
func (s *Suite) Shared() *Session {
	return s.shared
}

// Teardown closes the shared session. Failures are logged and returned so the
// caller can report them, but the suite is always left without a session.
func (s *Suite) Teardown(ctx context.Context) error {
	if s.shared == nil {
		return nil
	}
	sess := s.shared
	s.shared = nil
	if err := sess.Close(ctx); err != nil {
		log.Errorf("[SESSION] Shared session teardown for %s failed: %v", sess.Root(), err)
		return err
	}
	return nil
}
