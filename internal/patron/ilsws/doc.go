// Package ilsws implements patron.Client against SirsiDynix Symphony Web
// Services.
//
// Requests carry the configured client id, originating app id and a
// pre-provisioned session token. The adapter never performs a login.
package ilsws
