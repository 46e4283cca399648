// Package kubeconfig resolves the API server and credentials the schema
// fetcher talks to.
package kubeconfig

import (
	"fmt"

	"go.uber.org/zap/zapcore"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	internalerrors "github.com/tsamsiyu/k8schema/internal/errors"
)

// Auth holds the credentials used against the API server. A client
// certificate pair and a bearer token are independent and may both be set.
type Auth struct {
	CACert     string
	ClientCert string
	ClientKey  string
	Token      string

	CAData         []byte
	ClientCertData []byte
	ClientKeyData  []byte
	Insecure       bool
}

// HasClientCert reports whether both halves of a client certificate pair are present.
func (a Auth) HasClientCert() bool {
	hasCert := a.ClientCert != "" || len(a.ClientCertData) > 0
	hasKey := a.ClientKey != "" || len(a.ClientKeyData) > 0
	return hasCert && hasKey
}

func (a Auth) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("ca", a.CACert != "" || len(a.CAData) > 0)
	enc.AddBool("clientCert", a.HasClientCert())
	enc.AddBool("token", a.Token != "")
	enc.AddBool("insecure", a.Insecure)
	return nil
}

// Cluster is the API server resolved from a kubeconfig context.
type Cluster struct {
	Context string
	Server  string
	Auth    Auth
}

// Load reads the kubeconfig at path and resolves contextName, or the
// current-context when contextName is empty. Relative certificate paths are
// resolved against the kubeconfig's directory.
func Load(path, contextName string) (*Cluster, error) {
	cfg, err := clientcmd.LoadFromFile(path)
	if err != nil {
		return nil, internalerrors.NewConfigError("reading kubeconfig "+path, err)
	}

	if err := clientcmd.ResolveLocalPaths(cfg); err != nil {
		return nil, internalerrors.NewConfigError("resolving kubeconfig paths", err)
	}

	return Resolve(cfg, contextName)
}

// Resolve picks the context, cluster and user out of an already parsed kubeconfig.
func Resolve(cfg *clientcmdapi.Config, contextName string) (*Cluster, error) {
	if contextName == "" {
		contextName = cfg.CurrentContext
	}
	if contextName == "" {
		return nil, internalerrors.NewConfigError("current-context is not set", nil)
	}

	kubeContext, ok := cfg.Contexts[contextName]
	if !ok || kubeContext == nil {
		return nil, internalerrors.NewConfigError(fmt.Sprintf("context %q not found", contextName), nil)
	}

	cluster, ok := cfg.Clusters[kubeContext.Cluster]
	if !ok || cluster == nil {
		return nil, internalerrors.NewConfigError(fmt.Sprintf("cluster %q of context %q not found", kubeContext.Cluster, contextName), nil)
	}
	if cluster.Server == "" {
		return nil, internalerrors.NewConfigError(fmt.Sprintf("cluster %q has no server", kubeContext.Cluster), nil)
	}

	user, ok := cfg.AuthInfos[kubeContext.AuthInfo]
	if !ok || user == nil {
		return nil, internalerrors.NewConfigError(fmt.Sprintf("user %q of context %q not found", kubeContext.AuthInfo, contextName), nil)
	}

	return &Cluster{
		Context: contextName,
		Server:  cluster.Server,
		Auth: Auth{
			CACert:         cluster.CertificateAuthority,
			CAData:         cluster.CertificateAuthorityData,
			Insecure:       cluster.InsecureSkipTLSVerify,
			ClientCert:     user.ClientCertificate,
			ClientCertData: user.ClientCertificateData,
			ClientKey:      user.ClientKey,
			ClientKeyData:  user.ClientKeyData,
			Token:          user.Token,
		},
	}, nil
}
