package artifacts

import _ "embed"

// Default settings, written by `mountcheck config init` and used for any
// field a settings file leaves out.
//
//go:embed global/settings.yaml
var GlobalSettings []byte
