// Package auth is the sign-in facade the UI talks to.
//
// It runs in one of two modes, chosen once at startup from configuration:
//   - "cognito": identity is delegated to a Cognito user pool. The provider
//     client owns the session; the facade only queries it.
//   - "demo": no identity provider. The signed-in user is a JSON value kept in
//     local storage under a single key, and any credentials are accepted.
//
// # Configuration
//
// Production mode is selected when both identifiers are present:
//
//	COGNITO_USER_POOL_ID=ap-south-1_AbCdEf
//	COGNITO_CLIENT_ID=4h3k...
//	COGNITO_DOMAIN=nutrinani.auth.ap-south-1.amazoncognito.com  # Optional, enables Google sign-in
//	COGNITO_REGION=ap-south-1
//
// If either identifier is missing a warning is logged and demo mode is used.
// That is never an error.
//
// # Usage
//
//	a, err := auth.New(ctx, cfg, auth.Deps{Storage: store, Cache: tokens, Logger: log})
//	user, err := a.SignIn(ctx, "a@b.com", "secret")
//	token, ok := a.AccessToken(ctx)
//
// CurrentUser and AccessToken never fail: a lookup error and "nobody signed
// in" both read as no user, which is all session bootstrap needs. SignUp,
// ConfirmSignUp and SignIn return the provider's error so forms can show it.
package auth
