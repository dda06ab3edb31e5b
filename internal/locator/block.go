package locator

import (
	"strings"
)

// BlockType describes the kind of anti-bot page detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
	BlockAkamai     BlockType = "akamai"
	BlockDenied     BlockType = "access_denied"
)

// DetectBlock checks a page body for signs of anti-bot protection. The walker
// only consults it for pages that yielded nothing, so a challenge page is
// reported as a failure instead of an empty county.
func DetectBlock(body []byte) (bool, BlockType) {
	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}

	if strings.Contains(lower, "captcha") {
		return true, BlockCaptcha
	}

	// Akamai edge denial: "Access Denied" with a "Reference #" trailer.
	if strings.Contains(lower, "edgesuite.net") ||
		strings.Contains(lower, "akamai") && strings.Contains(lower, "reference #") ||
		strings.Contains(lower, "access denied") && strings.Contains(lower, "reference #") {
		return true, BlockAkamai
	}

	if strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "403 forbidden") ||
		strings.Contains(lower, "you don't have permission to access") {
		return true, BlockDenied
	}

	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
