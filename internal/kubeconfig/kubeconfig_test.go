package kubeconfig

import (
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalerrors "github.com/tsamsiyu/k8schema/internal/errors"
)

const testKubeconfig = `apiVersion: v1
kind: Config
current-context: dev
clusters:
- name: dev-cluster
  cluster:
    server: https://dev.example.com:6443
    certificate-authority: certs/ca.crt
- name: prod-cluster
  cluster:
    server: https://prod.example.com:6443
    certificate-authority-data: Y2EtZGF0YQ==
contexts:
- name: dev
  context:
    cluster: dev-cluster
    user: dev-user
- name: prod
  context:
    cluster: prod-cluster
    user: prod-user
- name: broken
  context:
    cluster: missing-cluster
    user: dev-user
- name: nobody
  context:
    cluster: dev-cluster
    user: missing-user
users:
- name: dev-user
  user:
    client-certificate: certs/client.crt
    client-key: /abs/client.key
- name: prod-user
  user:
    token: prod-token
`

func writeKubeconfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_CurrentContext(t *testing.T) {
	path := writeKubeconfig(t, testKubeconfig)

	cluster, err := Load(path, "")
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, "dev", cluster.Context)
	assert.Equal(t, "https://dev.example.com:6443", cluster.Server)
	assert.Equal(t, filepath.Join(dir, "certs/ca.crt"), cluster.Auth.CACert)
	assert.Equal(t, filepath.Join(dir, "certs/client.crt"), cluster.Auth.ClientCert)
	assert.Equal(t, "/abs/client.key", cluster.Auth.ClientKey)
	assert.Empty(t, cluster.Auth.Token)
	assert.True(t, cluster.Auth.HasClientCert())
}

func TestLoad_ContextOverride(t *testing.T) {
	path := writeKubeconfig(t, testKubeconfig)

	cluster, err := Load(path, "prod")
	require.NoError(t, err)

	assert.Equal(t, "https://prod.example.com:6443", cluster.Server)
	assert.Equal(t, []byte("ca-data"), cluster.Auth.CAData)
	assert.Equal(t, "prod-token", cluster.Auth.Token)
	assert.False(t, cluster.Auth.HasClientCert())
}

func TestLoad_Errors(t *testing.T) {
	path := writeKubeconfig(t, testKubeconfig)

	tests := []struct {
		name    string
		path    string
		context string
		message string
	}{
		{name: "missing file", path: filepath.Join(t.TempDir(), "nope"), message: "reading kubeconfig"},
		{name: "unknown context", path: path, context: "staging", message: `context "staging" not found`},
		{name: "unknown cluster", path: path, context: "broken", message: `cluster "missing-cluster"`},
		{name: "unknown user", path: path, context: "nobody", message: `user "missing-user"`},
		{name: "no current context", path: writeKubeconfig(t, "apiVersion: v1\nkind: Config\n"), message: "current-context is not set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path, tt.context)

			var configErr *internalerrors.ConfigError
			require.ErrorAs(t, err, &configErr)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestNewHTTPClient_SendsBearerTokenAndTrustsCA(t *testing.T) {
	var gotAuth string
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	caPath := filepath.Join(t.TempDir(), "ca.crt")
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(caPath, caPEM, 0o600))

	client, err := NewHTTPClient(Auth{CACert: caPath, Token: "s3cret"}, 5*time.Second)
	require.NoError(t, err)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer s3cret", gotAuth)
	assert.Equal(t, 5*time.Second, client.Timeout)
}

func TestNewHTTPClient_RejectsUnknownCA(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	client, err := NewHTTPClient(Auth{}, time.Second)
	require.NoError(t, err)

	_, err = client.Get(srv.URL)
	assert.Error(t, err)
}

func TestNewHTTPClient_InvalidClientCert(t *testing.T) {
	_, err := NewHTTPClient(Auth{
		ClientCertData: []byte("not a cert"),
		ClientKeyData:  []byte("not a key"),
	}, time.Second)

	assert.Error(t, err)
}
