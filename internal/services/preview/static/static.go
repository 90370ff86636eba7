package static

import "embed"

// FS exposes the preview browser client for HTTP serving.
//
//go:embed *.js
var FS embed.FS

// PatchScriptPath is where the preview page loads the browser client from.
const PatchScriptPath = "/static/patch.js"
