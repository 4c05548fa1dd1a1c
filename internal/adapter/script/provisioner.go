// Package script implements the provisioning bridge by invoking external
// shell scripts. The scripts own the actual environment bring-up and
// teardown; this adapter only executes them and normalizes their outcome.
package script

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/neomorfeo/provisiq/internal/domain"
)

const (
	provisionScript   = "provision_customer.sh"
	deprovisionScript = "deprovision_customer.sh"
)

// Compile-time check: Bridge implements domain.Provisioner.
var _ domain.Provisioner = (*Bridge)(nil)

// Bridge runs the provisioning scripts from a configured directory. Each call
// is a single synchronous invocation: no retries, output captured, non-zero
// exit reported as a domain.CommandError with the stderr diagnostic.
type Bridge struct {
	scriptsDir string
	timeout    time.Duration
	run        runFunc
}

// runFunc executes a command and returns stdout, stderr, and the run error.
// Swappable for tests.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

// Option configures a Bridge.
type Option func(*Bridge)

// WithTimeout bounds each script invocation. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.timeout = d }
}

// WithRunner replaces the process runner; used by tests.
func WithRunner(run runFunc) Option {
	return func(b *Bridge) { b.run = run }
}

// New creates a bridge executing scripts from scriptsDir.
func New(scriptsDir string, opts ...Option) *Bridge {
	b := &Bridge{
		scriptsDir: scriptsDir,
		run:        runCommand,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Provision invokes the external provisioning operation for email. The script
// allocates the subdomain and must print it as the last non-empty line of
// stdout; the full stdout is returned as the confirmation text.
func (b *Bridge) Provision(ctx context.Context, email, billingCustomerID, billingSubscriptionID string) (domain.ProvisionResult, error) {
	args := []string{"--email", email}
	if billingCustomerID != "" {
		args = append(args, "--billing-customer-id", billingCustomerID)
	}
	if billingSubscriptionID != "" {
		args = append(args, "--billing-subscription-id", billingSubscriptionID)
	}

	ctx, cancel := b.bound(ctx)
	defer cancel()

	stdout, stderr, err := b.run(ctx, filepath.Join(b.scriptsDir, provisionScript), args...)
	if err != nil {
		return domain.ProvisionResult{}, &domain.CommandError{
			Op:     "provision",
			Target: email,
			Output: diagnostic(stderr, err),
		}
	}

	output := strings.TrimSpace(stdout)
	subdomain := lastLine(output)
	if subdomain == "" {
		return domain.ProvisionResult{}, &domain.CommandError{
			Op:     "provision",
			Target: email,
			Output: "script reported success but printed no subdomain",
		}
	}

	return domain.ProvisionResult{Subdomain: subdomain, Output: output}, nil
}

// Deprovision invokes teardown for subdomain and returns the script's
// confirmation text.
func (b *Bridge) Deprovision(ctx context.Context, subdomain string) (string, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()

	stdout, stderr, err := b.run(ctx, filepath.Join(b.scriptsDir, deprovisionScript), subdomain)
	if err != nil {
		return "", &domain.CommandError{
			Op:     "deprovision",
			Target: subdomain,
			Output: diagnostic(stderr, err),
		}
	}

	return strings.TrimSpace(stdout), nil
}

func (b *Bridge) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.timeout)
}

func diagnostic(stderr string, err error) string {
	if s := strings.TrimSpace(stderr); s != "" {
		return s
	}
	return err.Error()
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

func runCommand(ctx context.Context, name string, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		err = fmt.Errorf("%s: %w", name, ctx.Err())
	}

	return stdout.String(), stderr.String(), err
}
