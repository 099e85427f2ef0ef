package device

import (
	"context"
	"errors"
	"os"
	"sync"
)

// Pool manages SSH executors for configured targets.
// It provides lazy initialization and connection caching.
type Pool struct {
	executors map[string]*SSHExecutor // target key -> executor
	config    SSHConfig
	readFile  func(string) ([]byte, error)
	mu        sync.RWMutex
}

// NewPool creates a new executor pool.
func NewPool(config SSHConfig) *Pool {
	return &Pool{
		executors: make(map[string]*SSHExecutor),
		config:    config,
		readFile:  os.ReadFile,
	}
}

// Executor returns an executor for target.
// If the executor doesn't exist, it creates one (lazy initialization).
// The executor is cached for subsequent calls.
func (p *Pool) Executor(ctx context.Context, target Target) (Executor, error) {
	key := target.Key()

	// Fast path: check if executor exists
	p.mu.RLock()
	executor, exists := p.executors[key]
	p.mu.RUnlock()

	if exists {
		return executor, nil
	}

	// Slow path: create executor
	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if executor, exists := p.executors[key]; exists {
		return executor, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var privateKey []byte
	if target.KeyFile != "" {
		data, err := p.readFile(target.KeyFile)
		if err != nil {
			return nil, NewDeviceError("Executor", target.Address(), "read key file: "+err.Error(), ErrAuthConfig)
		}
		privateKey = data
	}

	executor, err := NewSSHExecutor(target, privateKey, p.config)
	if err != nil {
		return nil, err
	}

	p.executors[key] = executor
	return executor, nil
}

// Remove closes and forgets the executor for a target.
func (p *Pool) Remove(target Target) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := target.Key()
	executor, exists := p.executors[key]
	if !exists {
		return nil
	}
	delete(p.executors, key)
	return executor.Close()
}

// CloseAll closes every cached executor.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for key, executor := range p.executors {
		if err := executor.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.executors, key)
	}
	return errors.Join(errs...)
}

// Len returns the number of cached executors.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.executors)
}
