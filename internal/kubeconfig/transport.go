package kubeconfig

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"k8s.io/client-go/transport"
)

// NewHTTPClient builds a client that verifies the server against the CA when
// one is given, presents the client certificate when both halves are given and
// sends the bearer token when one is given.
func NewHTTPClient(auth Auth, timeout time.Duration) (*http.Client, error) {
	cfg := &transport.Config{
		BearerToken: auth.Token,
		TLS: transport.TLSConfig{
			Insecure: auth.Insecure,
			CAFile:   auth.CACert,
			CAData:   auth.CAData,
		},
	}

	if auth.HasClientCert() {
		cfg.TLS.CertFile = auth.ClientCert
		cfg.TLS.CertData = auth.ClientCertData
		cfg.TLS.KeyFile = auth.ClientKey
		cfg.TLS.KeyData = auth.ClientKeyData
	}

	rt, err := transport.New(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build API server transport")
	}

	return &http.Client{
		Transport: rt,
		Timeout:   timeout,
	}, nil
}
