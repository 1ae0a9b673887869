package adapter

import "context"

// CredentialProvider supplies the bearer credential attached to backend requests.
// An empty credential means the request is sent unauthenticated.
type CredentialProvider interface {
	Credential(ctx context.Context) (string, error)
}
