package docker_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/neomorfeo/provisiq/internal/adapter/docker"
)

// fakeDocker writes a stand-in docker binary that answers "inspect" with the
// given behavior.
func fakeDocker(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docker")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("writing fake docker: %v", err)
	}
	return path
}

func TestContainerName(t *testing.T) {
	p := docker.New("provisiq")

	cases := []struct {
		subdomain string
		want      string
	}{
		{"acme", "provisiq-acme"},
		{"acme.staging", "provisiq-acme-staging"},
		{"a.b.c", "provisiq-a-b-c"},
	}

	for _, tc := range cases {
		if got := p.ContainerName(tc.subdomain); got != tc.want {
			t.Errorf("ContainerName(%q) = %q, want %q", tc.subdomain, got, tc.want)
		}
	}
}

func TestProbe_Healthy(t *testing.T) {
	bin := fakeDocker(t, "echo healthy\n")
	p := docker.New("provisiq", docker.WithCommand(bin))

	health := p.Probe(context.Background(), "acme")
	if !health.Ready {
		t.Error("Ready = false, want true")
	}
	if health.Status != "healthy" {
		t.Errorf("Status = %q, want %q", health.Status, "healthy")
	}
}

func TestProbe_Starting(t *testing.T) {
	bin := fakeDocker(t, "echo starting\n")
	p := docker.New("provisiq", docker.WithCommand(bin))

	health := p.Probe(context.Background(), "acme")
	if health.Ready {
		t.Error("Ready = true, want false while starting")
	}
	if health.Status != "starting" {
		t.Errorf("Status = %q, want %q", health.Status, "starting")
	}
}

func TestProbe_NotFound(t *testing.T) {
	bin := fakeDocker(t, "echo \"No such object\" >&2\nexit 1\n")
	p := docker.New("provisiq", docker.WithCommand(bin))

	health := p.Probe(context.Background(), "ghost")
	if health.Ready {
		t.Error("Ready = true, want false for missing container")
	}
	if health.Status != "not_found" {
		t.Errorf("Status = %q, want %q", health.Status, "not_found")
	}
}

func TestProbe_MissingDockerBinary(t *testing.T) {
	p := docker.New("provisiq", docker.WithCommand("/nonexistent/docker"))

	health := p.Probe(context.Background(), "acme")
	if health.Ready || health.Status != "not_found" {
		t.Errorf("got %+v, want non-ready not_found", health)
	}
}
