package sandbox

// ContentSecurityPolicy is the policy injected into every previewed document.
// AI-authored pages lean on inline styles/scripts and Google Fonts, so those
// are allowed; everything else is pinned to self, data/blob URIs, or HTTPS.
// Nested frames are forbidden entirely. Assets outside this list are blocked
// by the browser and fall back to system defaults.
const ContentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' 'unsafe-eval'; " +
	"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; " +
	"font-src 'self' data: https://fonts.gstatic.com; " +
	"img-src 'self' data: blob: https:; " +
	"media-src 'self' https:; " +
	"connect-src 'self' https:; " +
	"frame-src 'none'"
