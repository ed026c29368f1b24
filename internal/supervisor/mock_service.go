// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package supervisor

import (
	"context"
	"sync/atomic"
)

// MockService is a controllable suture.Service for tests. It counts starts
// and stops and can be told to fail a fixed number of times before running
// normally.
type MockService struct {
	name string

	startCount atomic.Int64
	stopCount  atomic.Int64
	failCount  atomic.Int64

	serveErr atomic.Value // error returned instead of blocking
}

// NewMockService returns a mock that blocks in Serve until ctx is canceled.
func NewMockService(name string) *MockService {
	return &MockService{name: name}
}

// SetError makes the next Serve calls return err immediately.
func (m *MockService) SetError(err error) {
	m.serveErr.Store(err)
}

// SetFailCount makes Serve return an error the first n times it runs.
func (m *MockService) SetFailCount(n int64) {
	m.failCount.Store(n)
}

// StartCount reports how many times Serve has been entered.
func (m *MockService) StartCount() int64 { return m.startCount.Load() }

// StopCount reports how many times Serve has returned via ctx cancellation.
func (m *MockService) StopCount() int64 { return m.stopCount.Load() }

func (m *MockService) Serve(ctx context.Context) error {
	m.startCount.Add(1)

	if v := m.serveErr.Load(); v != nil {
		if err, ok := v.(error); ok && err != nil {
			return err
		}
	}

	if m.failCount.Load() > 0 {
		m.failCount.Add(-1)
		return context.DeadlineExceeded
	}

	<-ctx.Done()
	m.stopCount.Add(1)
	return ctx.Err()
}

func (m *MockService) String() string { return m.name }
