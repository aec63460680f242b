// Package auth provides API key authentication for the plantlens HTTP surface.
//
// APIKey(mode, header, key) returns middleware that validates the key from
// the named request header, or from the api_key query parameter for clients
// such as browsers opening a WebSocket that cannot set headers.
//
// When mode != "apikey" or key == "", all requests pass through (useful for
// local development with auth disabled). A missing or incorrect key is
// answered with 401 immediately.
package auth
