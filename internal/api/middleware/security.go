package middleware

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders sets the baseline hardening headers on every response.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("X-Content-Type-Options", "nosniff")

		// The console is never embedded in another page
		c.Header("X-Frame-Options", "DENY")

		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		c.Next()
	}
}

// ContentSecurityPolicy sets a restrictive CSP. The service is primarily a
// JSON API, but it may also serve the console's static bundle from the same
// origin, so self-hosted scripts and styles stay allowed.
func ContentSecurityPolicy(isDev bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defaultSrc := "'none'"
		scriptSrc := "'self'"

		// Inline styles are needed by the console's component styling
		styleSrc := "'self' 'unsafe-inline'"

		imgSrc := "'self' data:"
		connectSrc := "'self'"

		if isDev {
			// The Vite dev server needs a websocket for HMR and eval for
			// source maps.
			connectSrc += " ws: wss:"
			scriptSrc += " 'unsafe-eval'"
		}

		policy := "default-src " + defaultSrc + "; " +
			"script-src " + scriptSrc + "; " +
			"style-src " + styleSrc + "; " +
			"img-src " + imgSrc + "; " +
			"connect-src " + connectSrc + "; " +
			"font-src 'self'; " +
			"object-src 'none'; " +
			"frame-ancestors 'none';"

		c.Header("Content-Security-Policy", policy)
		c.Next()
	}
}
