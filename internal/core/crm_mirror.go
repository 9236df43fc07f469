package core

import (
	"context"
	"sync"
	"time"

	"educrm.io/ai-agent/internal/crm"
	"educrm.io/ai-agent/internal/logger"
)

// CRMMirror pushes local changes to the CRM in the background. Failures are logged only.
type CRMMirror struct {
	gateway crm.Gateway
	log     *logger.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewCRMMirror(gateway crm.Gateway, log *logger.Logger, timeout time.Duration) *CRMMirror {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CRMMirror{gateway: gateway, log: log, timeout: timeout}
}

func (m *CRMMirror) run(op string, id int64, fn func(ctx context.Context, g crm.Gateway) error) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		if err := fn(ctx, m.gateway); err != nil {
			m.log.Warn("CRM mirror failed", "op", op, "id", id, "error", err)
			return
		}
		m.log.Debug("CRM mirror done", "op", op, "id", id)
	}()
}

// Wait blocks until every mirror call started so far has finished.
func (m *CRMMirror) Wait() { m.wg.Wait() }
