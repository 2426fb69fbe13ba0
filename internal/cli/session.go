// This file implements opening a store-backed service session for a command.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/docket/internal/remote"
	"github.com/mesh-intelligence/docket/internal/service"
	"github.com/mesh-intelligence/docket/internal/validate"
	"github.com/mesh-intelligence/docket/pkg/sqlite"
	"github.com/mesh-intelligence/docket/pkg/types"
)

// session is an attached store plus the service built over it. The caller
// must Close it.
type session struct {
	svc   *service.Service
	store types.Store
	log   *logrus.Logger
}

// openSession resolves configuration, attaches the backend and wires the
// validation engine to the HTTP lookup client.
func openSession(cmd *cobra.Command, f *rootFlags) (*session, error) {
	st, err := resolveSettings(f)
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cmd.ErrOrStderr(), st.LogLevel, st.LogFormat)
	if err != nil {
		return nil, usageError{err}
	}

	store, err := sqlite.Open(types.Config{Backend: st.Backend, DataDir: st.DataDir})
	if err != nil {
		return nil, err
	}

	client := remote.NewClient(st.RemoteBaseURL, remote.WithLogger(log))
	engine := validate.New(client,
		validate.WithTimeout(st.RemoteTimeout),
		validate.WithConcurrency(st.Concurrency),
		validate.WithLogger(log),
	)
	svc, err := service.New(store, engine, service.WithLogger(log))
	if err != nil {
		_ = store.Detach()
		return nil, err
	}
	log.WithField("data_dir", st.DataDir).Debug("session opened")
	return &session{svc: svc, store: store, log: log}, nil
}

// Close detaches the backend.
func (s *session) Close() error {
	return s.store.Detach()
}

// withSession runs fn against an open session and closes it afterwards.
func withSession(cmd *cobra.Command, f *rootFlags, fn func(*session) error) error {
	s, err := openSession(cmd, f)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
