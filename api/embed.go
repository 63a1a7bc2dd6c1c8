// Package api holds the OpenAPI description of the HTTP surface.
package api

import _ "embed"

//go:embed api.yaml
var Spec []byte
