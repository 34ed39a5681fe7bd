package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/velikanov/calsec/internal/auth"
)

// Profile is the user-profile summary fetched after a successful login.
// It is used only for the personalized confirmation message.
type Profile struct {
	Name  string
	Email string
}

// FetchProfile retrieves the userinfo profile for the credential. Extra
// options are for tests pointing the service at a fixture endpoint.
func FetchProfile(ctx context.Context, cred *auth.StoredCredential, opts ...option.ClientOption) (*Profile, error) {
	httpClient := oauth2.NewClient(ctx, cred.TokenSource(ctx))

	allOpts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := goauth2.NewService(ctx, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Do()
	if err != nil {
		return nil, &auth.ProviderError{Op: "userinfo", User: cred.User, Err: err}
	}

	return &Profile{
		Name:  info.Name,
		Email: info.Email,
	}, nil
}
