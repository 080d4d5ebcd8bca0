package server

import (
	"fmt"
	"html"
	"net/http"
)

// setSecurityHeaders sets recommended security headers for HTML responses.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
}

// renderTokenPage shows the issued session token so the user can copy it
// into their MCP client configuration. The token is shown exactly once and
// never stored server-side.
func renderTokenPage(w http.ResponseWriter, username, token string) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	safeUsername := html.EscapeString(username)
	safeToken := html.EscapeString(token)

	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Authentication Successful - simbridge</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
               max-width: 640px; margin: 3rem auto; padding: 0 1rem; color: #222; }
        code { background: #f0f0f0; padding: 10px; display: block; margin: 10px 0;
               word-break: break-all; border-radius: 4px; }
        small { color: #666; }
    </style>
</head>
<body>
    <h2>&#10003; Authentication Successful</h2>
    <p>Welcome, <strong>%s</strong>!</p>
    <p>Your access token:</p>
    <code>%s</code>
    <p><small>Copy this token and use it in the Authorization header of your MCP client.</small></p>
    <p><small>Example: <code>Authorization: Bearer %s</code></small></p>
    <p><small>The token is valid for 24 hours. You can close this window.</small></p>
</body>
</html>`, safeUsername, safeToken, safeToken)
}

// renderErrorPage renders a generic authentication failure page. Operator
// detail goes to the logs, never to this page.
func renderErrorPage(w http.ResponseWriter, message string) {
	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)

	safeMessage := html.EscapeString(message)

	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Authentication Failed - simbridge</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
               max-width: 640px; margin: 3rem auto; padding: 0 1rem; color: #222; }
        .message { color: #c0392b; }
    </style>
</head>
<body>
    <h2>&#10007; Authentication Failed</h2>
    <p class="message">%s</p>
    <p>Return to <a href="/auth/login">/auth/login</a> to try again.</p>
</body>
</html>`, safeMessage)
}
