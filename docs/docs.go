// Package docs registers the Swagger document served at /docs.
// Keep in sync with the handler annotations in internal/api/handler.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/sessions": {
            "get": {
                "description": "Returns per-category session marker, predicted end, last rotation and counters. Supports If-None-Match.",
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Current sessions",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/status.Sessions"}
                    },
                    "304": {"description": "Not Modified"}
                }
            }
        },
        "/stock/{category}": {
            "get": {
                "description": "Returns the aggregated items and watchlist matches from the category's latest session.",
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Category stock",
                "parameters": [
                    {
                        "type": "string",
                        "example": "seed_stock",
                        "description": "Category name",
                        "name": "category",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/status.Category"}
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {"$ref": "#/definitions/respond.ErrorResponse"}
                    }
                }
            }
        }
    },
    "definitions": {
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"}
                    }
                }
            }
        },
        "stock.Item": {
            "type": "object",
            "properties": {
                "item_id": {"type": "string"},
                "display_name": {"type": "string"},
                "quantity": {"type": "integer"},
                "Date_Start": {"type": "string"},
                "Date_End": {"type": "string"}
            }
        },
        "status.Category": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "session": {"type": "string"},
                "seen": {"type": "boolean"},
                "predicted_end": {"type": "string"},
                "last_rotation": {"type": "string"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/stock.Item"}},
                "matches": {"type": "array", "items": {"$ref": "#/definitions/stock.Item"}},
                "last_error": {"type": "string"}
            }
        },
        "status.Sessions": {
            "type": "object",
            "properties": {
                "server_time": {"type": "string"},
                "fetches": {"type": "integer"},
                "rotations": {"type": "integer"},
                "alerts_sent": {"type": "integer"},
                "alerts_failed": {"type": "integer"},
                "categories": {"type": "array", "items": {"$ref": "#/definitions/status.Category"}},
                "published_at": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "shopwatch status API",
	Description:      "Read-only view of the shop session monitor: tracked sessions, predicted rotations and last stock per category.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
