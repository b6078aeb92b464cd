package versioning

import "net/http"

const versionHeader = "X-Api-Version"

// Middleware stamps every response with the API version so clients can
// detect a backend upgrade without an extra round trip.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(versionHeader, APIVersion)
		next.ServeHTTP(w, r)
	})
}
