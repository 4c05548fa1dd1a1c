package http_test

import (
	"net/http"
	"testing"
)

func TestAdminAuth_MissingKeyRejected(t *testing.T) {
	env := newTestEnv(t, testAdminKey)

	resp := doRequest(t, http.MethodGet, env.srv.URL+"/admin/customers", "", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestAdminAuth_WrongKeyRejected(t *testing.T) {
	env := newTestEnv(t, testAdminKey)

	resp := doRequest(t, http.MethodGet, env.srv.URL+"/admin/customers", "", map[string]string{
		"Authorization": "Bearer not-the-key",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestAdminAuth_MalformedHeaderRejected(t *testing.T) {
	env := newTestEnv(t, testAdminKey)

	resp := doRequest(t, http.MethodGet, env.srv.URL+"/admin/customers", "", map[string]string{
		"Authorization": testAdminKey, // no Bearer prefix
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestAdminAuth_UnconfiguredKeyIsServerError(t *testing.T) {
	env := newTestEnv(t, "")

	resp := doRequest(t, http.MethodGet, env.srv.URL+"/admin/customers", "", adminHeaders())
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
}

func TestAdminAuth_PublicRoutesUnaffected(t *testing.T) {
	env := newTestEnv(t, "")

	// The probe endpoint stays reachable even with no admin key configured.
	resp := doRequest(t, http.MethodGet, env.srv.URL+"/api/status/alice", "", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
