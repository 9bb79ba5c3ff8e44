// Package docs serves the gateway's Swagger 2.0 document to the Swagger UI
// mounted at /api/docs/. The document is maintained by hand next to the
// handlers' annotations.
package docs

import (
	_ "embed"

	"github.com/swaggo/swag"
)

//go:embed swagger.json
var doc string

type document struct{}

func (document) ReadDoc() string {
	return doc
}

func init() {
	swag.Register(swag.Name, document{})
}
