// Package authcore is an embeddable authentication engine covering
// multi-method sign-in, JWT access and refresh tokens, device-session
// tracking, password lifecycle, and confirmation-code flows.
//
// Assemble an engine with the builder:
//
//	auth, err := authcore.New().
//		WithConfig(cfg).
//		WithUserStore(users).
//		WithRedis(client).
//		WithEventSink(sink).
//		Build()
//
// The engine exposes one method per operation (SignUp, SignIn,
// RefreshToken, SetAuthAttributes, CheckAuthAttributes, SignOut,
// RequestConfirmation, DeleteUser). Errors compare with errors.Is
// against the package sentinels and map to stable wire codes via Code.
package authcore
