// Package docker implements the status probe by querying container health
// through the docker CLI.
package docker

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/neomorfeo/provisiq/internal/domain"
)

// statusNotFound is reported when no container exists for the subdomain.
// A tenant mid-provisioning has no container yet, so this is an expected
// state, not an error.
const statusNotFound = "not_found"

// Compile-time check: Prober implements domain.HealthProber.
var _ domain.HealthProber = (*Prober)(nil)

// Prober maps a subdomain to the health of its container.
type Prober struct {
	prefix string
	docker string
}

// Option configures a Prober.
type Option func(*Prober)

// WithCommand replaces the docker binary; used by tests.
func WithCommand(path string) Option {
	return func(p *Prober) { p.docker = path }
}

// New creates a prober for containers named with the given prefix.
func New(prefix string, opts ...Option) *Prober {
	p := &Prober{
		prefix: prefix,
		docker: "docker",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ContainerName derives the container name for a subdomain: dots become
// hyphens so the name stays within docker's allowed character set.
func (p *Prober) ContainerName(subdomain string) string {
	return p.prefix + "-" + strings.ReplaceAll(subdomain, ".", "-")
}

// Probe reports whether the subdomain's container is healthy. Lookup failures
// map to a non-ready "not_found" signal.
func (p *Prober) Probe(ctx context.Context, subdomain string) domain.Health {
	var stdout bytes.Buffer

	cmd := exec.CommandContext(ctx, p.docker,
		"inspect", "--format", "{{.State.Health.Status}}", p.ContainerName(subdomain))
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return domain.Health{Ready: false, Status: statusNotFound}
	}

	health := strings.TrimSpace(stdout.String())
	return domain.Health{Ready: health == "healthy", Status: health}
}
