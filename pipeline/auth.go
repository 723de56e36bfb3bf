package pipeline

import "net/http"

// TokenSource supplies the current bearer credential, if any.
type TokenSource interface {
	Token() (string, bool)
}

// ActivityToucher records a successful interaction with the API.
type ActivityToucher interface {
	TouchActivity() bool
}

// BearerAuth attaches "Authorization: Bearer <token>" when a token is
// stored, otherwise the request goes out unauthenticated. The token is read
// per attempt so retries pick up the current credential.
func BearerAuth(src TokenSource) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			token, ok := src.Token()
			if !ok {
				return next.RoundTrip(req)
			}
			r := req.Clone(req.Context())
			r.Header.Set("Authorization", "Bearer "+token)
			return next.RoundTrip(r)
		})
	}
}

// SessionGuard touches last activity on every 2xx response and calls
// onUnauthorized once for every 401 response. The response is always passed
// back unchanged so the caller still sees the failure.
func SessionGuard(toucher ActivityToucher, onUnauthorized func(*http.Request)) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			if err != nil {
				return nil, err
			}
			switch {
			case resp.StatusCode == http.StatusUnauthorized:
				if onUnauthorized != nil {
					onUnauthorized(req)
				}
			case isSuccess(resp.StatusCode):
				toucher.TouchActivity()
			}
			return resp, nil
		})
	}
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
