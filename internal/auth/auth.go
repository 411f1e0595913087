// Package auth builds HTTP authentication headers from templated manifest
// values.
package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/roach88/lowcode/internal/doc"
	"github.com/roach88/lowcode/internal/interpolation"
)

// AuthorizationHeader is the header set by Bearer and BasicHTTP.
const AuthorizationHeader = "Authorization"

// HeaderAuthenticator produces a single request header.
type HeaderAuthenticator interface {
	AuthHeader() (string, error)
	Token() (string, error)
}

// APIKey sets an arbitrary templated header to a templated token.
type APIKey struct {
	header *interpolation.String
	token  *interpolation.String
	config *doc.Map
}

// NewAPIKey parses header and token. params are exposed to both templates as
// .parameters.
func NewAPIKey(header, token string, config *doc.Map, params map[string]any) (*APIKey, error) {
	h, err := interpolation.New(header, interpolation.WithParameters(params))
	if err != nil {
		return nil, fmt.Errorf("api key header: %w", err)
	}
	t, err := interpolation.New(token, interpolation.WithParameters(params))
	if err != nil {
		return nil, fmt.Errorf("api key token: %w", err)
	}
	return &APIKey{header: h, token: t, config: config}, nil
}

func (a *APIKey) AuthHeader() (string, error) { return a.header.Eval(a.config, nil) }
func (a *APIKey) Token() (string, error)      { return a.token.Eval(a.config, nil) }

// Bearer sets "Authorization: Bearer <token>".
type Bearer struct {
	token  *interpolation.String
	config *doc.Map
}

func NewBearer(token string, config *doc.Map, params map[string]any) (*Bearer, error) {
	t, err := interpolation.New(token, interpolation.WithParameters(params))
	if err != nil {
		return nil, fmt.Errorf("bearer token: %w", err)
	}
	return &Bearer{token: t, config: config}, nil
}

func (b *Bearer) AuthHeader() (string, error) { return AuthorizationHeader, nil }

func (b *Bearer) Token() (string, error) {
	tok, err := b.token.Eval(b.config, nil)
	if err != nil {
		return "", err
	}
	return "Bearer " + tok, nil
}

// BasicHTTP sets "Authorization: Basic base64(username:password)" as in
// RFC 7617. The password may be empty.
type BasicHTTP struct {
	username *interpolation.String
	password *interpolation.String
	config   *doc.Map
}

func NewBasicHTTP(username, password string, config *doc.Map, params map[string]any) (*BasicHTTP, error) {
	u, err := interpolation.New(username, interpolation.WithParameters(params))
	if err != nil {
		return nil, fmt.Errorf("basic username: %w", err)
	}
	p, err := interpolation.New(password, interpolation.WithParameters(params))
	if err != nil {
		return nil, fmt.Errorf("basic password: %w", err)
	}
	return &BasicHTTP{username: u, password: p, config: config}, nil
}

func (b *BasicHTTP) AuthHeader() (string, error) { return AuthorizationHeader, nil }

func (b *BasicHTTP) Token() (string, error) {
	user, err := b.username.Eval(b.config, nil)
	if err != nil {
		return "", err
	}
	pass, err := b.password.Eval(b.config, nil)
	if err != nil {
		return "", err
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass)), nil
}

// Header evaluates both sides of the authenticator's header.
func Header(a HeaderAuthenticator) (name, value string, err error) {
	name, err = a.AuthHeader()
	if err != nil {
		return "", "", fmt.Errorf("auth header: %w", err)
	}
	if strings.TrimSpace(name) == "" {
		return "", "", errors.New("auth header: empty header name")
	}
	value, err = a.Token()
	if err != nil {
		return "", "", fmt.Errorf("auth token: %w", err)
	}
	return name, value, nil
}

// Apply sets the authenticator's header on req, replacing any existing value.
func Apply(req *http.Request, a HeaderAuthenticator) error {
	name, value, err := Header(a)
	if err != nil {
		return err
	}
	req.Header.Set(name, value)
	return nil
}

// Mask hides all but the scheme and the last four characters of a token.
// Tokens of eight characters or fewer are hidden entirely.
func Mask(value string) string {
	scheme, secret, ok := strings.Cut(value, " ")
	if !ok {
		scheme, secret = "", value
	}
	masked := "****"
	if r := []rune(secret); len(r) > 8 {
		masked += string(r[len(r)-4:])
	}
	if scheme != "" {
		return scheme + " " + masked
	}
	return masked
}
