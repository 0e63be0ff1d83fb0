package adapter

import (
	"context"
	"time"

	"github.com/AustinJR6/wwjd-memory/pkg/interfaces"
	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/m-mizutani/goerr/v2"
)

const (
	firebaseJWKSURL      = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
	firebaseIssuerPrefix = "https://securetoken.google.com/"
)

// FirebaseAuth verifies Firebase ID tokens and resolves them to the user id
type FirebaseAuth struct {
	projectID string
	jwksURL   string
	keySet    jwk.Set
	cache     *jwk.Cache
	skew      time.Duration
	clock     func() time.Time
}

var _ interfaces.IdentityVerifier = (*FirebaseAuth)(nil)

type FirebaseAuthOption func(*FirebaseAuth)

// WithKeySet uses a fixed key set instead of fetching Google's public keys
func WithKeySet(set jwk.Set) FirebaseAuthOption {
	return func(a *FirebaseAuth) {
		a.keySet = set
	}
}

func WithJWKSURL(url string) FirebaseAuthOption {
	return func(a *FirebaseAuth) {
		a.jwksURL = url
	}
}

func WithAuthClock(clock func() time.Time) FirebaseAuthOption {
	return func(a *FirebaseAuth) {
		a.clock = clock
	}
}

func NewFirebaseAuth(ctx context.Context, projectID string, opts ...FirebaseAuthOption) (*FirebaseAuth, error) {
	if projectID == "" {
		return nil, goerr.New("firebase project is required")
	}

	a := &FirebaseAuth{
		projectID: projectID,
		jwksURL:   firebaseJWKSURL,
		skew:      30 * time.Second,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.keySet != nil {
		return a, nil
	}

	cache, err := jwk.NewCache(ctx, httprc.NewClient())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create jwk cache")
	}
	if err := cache.Register(ctx, a.jwksURL); err != nil {
		return nil, goerr.Wrap(err, "failed to register jwks url", goerr.V("url", a.jwksURL))
	}
	a.cache = cache

	return a, nil
}

func (a *FirebaseAuth) keys(ctx context.Context) (jwk.Set, error) {
	if a.keySet != nil {
		return a.keySet, nil
	}
	return a.cache.Lookup(ctx, a.jwksURL)
}

// Verify returns the uid (sub claim) of a valid token. Every failure is
// reported as model.ErrUnauthorized.
func (a *FirebaseAuth) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", goerr.Wrap(model.ErrUnauthorized, "empty token")
	}

	set, err := a.keys(ctx)
	if err != nil {
		return "", goerr.Wrap(model.ErrUnauthorized, "failed to load signing keys", goerr.V("error", err.Error()))
	}

	parsed, err := jwt.ParseString(token,
		jwt.WithKeySet(set, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(true),
		jwt.WithIssuer(firebaseIssuerPrefix+a.projectID),
		jwt.WithAudience(a.projectID),
		jwt.WithAcceptableSkew(a.skew),
		jwt.WithClock(jwt.ClockFunc(a.clock)),
	)
	if err != nil {
		return "", goerr.Wrap(model.ErrUnauthorized, "invalid id token", goerr.V("error", err.Error()))
	}

	uid, ok := parsed.Subject()
	if !ok || uid == "" {
		return "", goerr.Wrap(model.ErrUnauthorized, "id token has no subject")
	}

	return uid, nil
}
