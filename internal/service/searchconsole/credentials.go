package searchconsole

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	xhttp "SearchInsight/pkg/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scope is the read-only Search Console OAuth scope.
const Scope = "https://www.googleapis.com/auth/webmasters.readonly"

// ErrNoCredentials is returned when no credential source is available.
var ErrNoCredentials = errors.New("searchconsole: no credentials found")

// CredentialSource resolves Google credentials in order: an explicit file,
// GOOGLE_APPLICATION_CREDENTIALS, then application default credentials.
type CredentialSource struct {
	File string

	getenv      func(string) string
	readFile    func(string) ([]byte, error)
	findDefault func(ctx context.Context, scopes ...string) (*google.Credentials, error)
}

func NewCredentialSource(file string) *CredentialSource {
	return &CredentialSource{
		File:        file,
		getenv:      os.Getenv,
		readFile:    os.ReadFile,
		findDefault: google.FindDefaultCredentials,
	}
}

// Credentials returns the first credentials found. The token source keeps
// the context for refreshes, so cancellation of ctx is not propagated to it.
func (s *CredentialSource) Credentials(ctx context.Context) (*google.Credentials, error) {
	ctx = context.WithoutCancel(ctx)
	if s.File != "" {
		return s.fromFile(ctx, s.File)
	}
	if path := s.getenv("GOOGLE_APPLICATION_CREDENTIALS"); path != "" {
		return s.fromFile(ctx, path)
	}
	creds, err := s.findDefault(ctx, Scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCredentials, err)
	}
	return creds, nil
}

func (s *CredentialSource) fromFile(ctx context.Context, path string) (*google.Credentials, error) {
	data, err := s.readFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrNoCredentials, path, err)
	}
	//nolint:staticcheck // the file is operator supplied
	creds, err := google.CredentialsFromJSON(ctx, data, Scope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	return creds, nil
}

// HTTPClient returns an http.Client that attaches OAuth2 tokens. The client
// outlives ctx.
func (s *CredentialSource) HTTPClient(ctx context.Context) (*http.Client, error) {
	creds, err := s.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(context.WithoutCancel(ctx), creds.TokenSource), nil
}

type failingTransport struct{ err error }

func (t failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, xhttp.Permanent(t.err)
}

// FailingClient returns a client whose requests all fail with err. It stands
// in for the OAuth client when no credentials exist, so endpoints that do not
// call Search Console keep working.
func FailingClient(err error) *http.Client {
	return &http.Client{Transport: failingTransport{err: err}}
}
