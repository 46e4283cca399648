package errors

import "fmt"

// ConfigError represents configuration or kubeconfig that cannot be resolved
type ConfigError struct {
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %s: %v", e.Message, e.Err)
	}
	return "invalid configuration: " + e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func NewConfigError(message string, err error) *ConfigError {
	return &ConfigError{
		Message: message,
		Err:     err,
	}
}

// CatalogFetchError represents a failure to retrieve or parse the schema catalog.
// StatusCode is zero when the request never got a response.
type CatalogFetchError struct {
	StatusCode int
	Err        error
}

func (e *CatalogFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to fetch schema catalog: %v", e.Err)
	}
	return fmt.Sprintf("failed to fetch schema catalog: status code %d", e.StatusCode)
}

func (e *CatalogFetchError) Unwrap() error {
	return e.Err
}

func NewCatalogFetchError(statusCode int, err error) *CatalogFetchError {
	return &CatalogFetchError{
		StatusCode: statusCode,
		Err:        err,
	}
}

// PathFetchError represents a failure to retrieve or parse one catalog path
type PathFetchError struct {
	Path       string
	StatusCode int
	Err        error
}

func (e *PathFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to fetch schema path %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("failed to fetch schema path %s: status code %d", e.Path, e.StatusCode)
}

func (e *PathFetchError) Unwrap() error {
	return e.Err
}

func NewPathFetchError(path string, statusCode int, err error) *PathFetchError {
	return &PathFetchError{
		Path:       path,
		StatusCode: statusCode,
		Err:        err,
	}
}

// MarshalingError represents when marshaling or unmarshaling operations fail
type MarshalingError struct {
	Message string
}

func (e *MarshalingError) Error() string {
	return e.Message
}

func NewMarshalingError(message string) *MarshalingError {
	return &MarshalingError{
		Message: message,
	}
}

// NotFoundError represents a schema definition that is not in the cache
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("definition %s not found", e.Name)
}

func NewNotFoundError(name string) *NotFoundError {
	return &NotFoundError{
		Name: name,
	}
}
