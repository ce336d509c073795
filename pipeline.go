package ldap

import (
	"io"
	"sync"
)

// pipelineFilter is the reader/writer a Conn's pipeline reads and writes
// through: the raw socket, or the *tls.Conn wrapping it once TLS is
// established. No SASL security layer is ever installed.
type pipelineFilter interface {
	io.Reader
	io.Writer
}

// pipeline holds the single Reader/Writer the codec operates on. Replacing
// it (the TLS upgrade in StartTLS) is guarded by mu so a concurrent
// read/write never observes a half-updated pair.
type pipeline struct {
	mu     sync.RWMutex
	reader io.Reader
	writer io.Writer
}

func newPipeline(rw pipelineFilter) *pipeline {
	return &pipeline{reader: rw, writer: rw}
}

func (p *pipeline) Read(b []byte) (int, error) {
	p.mu.RLock()
	r := p.reader
	p.mu.RUnlock()
	return r.Read(b)
}

func (p *pipeline) Write(b []byte) (int, error) {
	p.mu.RLock()
	w := p.writer
	p.mu.RUnlock()
	return w.Write(b)
}

// wrap replaces the current reader/writer with rw, e.g. swapping a raw TCP
// socket for a *tls.Conn after a successful StartTLS handshake.
func (p *pipeline) wrap(rw pipelineFilter) {
	p.mu.Lock()
	p.reader = rw
	p.writer = rw
	p.mu.Unlock()
}
