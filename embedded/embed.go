// Package embedded provides the Claude Code hook manifest embedded in the
// keyguard binary, so `keyguard hooks` works without a repo checkout.
package embedded

import _ "embed"

// HooksJSON contains the raw hooks.json configuration.
//
//go:embed hooks/hooks.json
var HooksJSON []byte
