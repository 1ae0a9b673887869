package credentials

import (
	"context"

	"vidiwise/internal/domain/ports/adapter"
)

var _ adapter.CredentialProvider = StaticToken("")

// StaticToken hands out a fixed bearer token. An empty token sends no
// Authorization header.
type StaticToken string

func (s StaticToken) Credential(context.Context) (string, error) { return string(s), nil }
