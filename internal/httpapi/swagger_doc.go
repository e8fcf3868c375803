//go:build swagger

package httpapi

import "github.com/swaggo/swag"

// swaggerTemplate is a minimal document; `swag init` output replaces it
// when generated docs are linked in.
const swaggerTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "basePath": "{{.BasePath}}",
    "paths": {}
}`

// SwaggerInfo describes the API for the Swagger UI.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Title:            "lottied API",
	Description:      "HTTP API for loading, playing and rendering Lottie animations.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  swaggerTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
