// Package docs serves the OpenAPI description of the marketplace API.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/health": {"get": {"tags": ["health"], "summary": "Health", "security": [], "responses": {"200": {"description": "OK"}}}},
        "/health/ready": {"get": {"tags": ["health"], "summary": "Readiness", "security": [], "responses": {"200": {"description": "OK"}, "503": {"description": "Not ready"}}}},
        "/v1/wizard": {
            "get": {"tags": ["wizard"], "summary": "Current wizard state", "parameters": [{"$ref": "#/parameters/SessionID"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/WizardResponse"}}}},
            "delete": {"tags": ["wizard"], "summary": "Discard the wizard session", "parameters": [{"$ref": "#/parameters/SessionID"}], "responses": {"204": {"description": "No Content"}}}
        },
        "/v1/wizard/reset": {"post": {"tags": ["wizard"], "summary": "Reset the wizard", "parameters": [{"$ref": "#/parameters/SessionID"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/WizardResponse"}}}}},
        "/v1/wizard/start": {"post": {"tags": ["wizard"], "summary": "Start the application", "parameters": [{"$ref": "#/parameters/SessionID"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/WizardResponse"}}, "503": {"$ref": "#/responses/Error"}}}},
        "/v1/wizard/next": {"post": {"tags": ["wizard"], "summary": "Complete the current step", "parameters": [{"$ref": "#/parameters/SessionID"}, {"in": "body", "name": "body", "required": true, "schema": {"type": "object", "properties": {"data": {"type": "object"}}}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/WizardResponse"}}, "400": {"$ref": "#/responses/Error"}, "409": {"$ref": "#/responses/Error"}}}},
        "/v1/wizard/back": {"post": {"tags": ["wizard"], "summary": "Go back one step", "parameters": [{"$ref": "#/parameters/SessionID"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/WizardResponse"}}}}},
        "/v1/wizard/step": {"put": {"tags": ["wizard"], "summary": "Jump to a step", "parameters": [{"$ref": "#/parameters/SessionID"}, {"in": "body", "name": "body", "required": true, "schema": {"type": "object", "properties": {"step": {"type": "integer"}}}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/WizardResponse"}}, "400": {"$ref": "#/responses/Error"}}}},
        "/v1/wizard/sections/{name}": {"put": {"tags": ["wizard"], "summary": "Save a section", "parameters": [{"$ref": "#/parameters/SessionID"}, {"in": "path", "name": "name", "required": true, "type": "string", "enum": ["business", "contact", "product"]}, {"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/WizardResponse"}}, "400": {"$ref": "#/responses/Error"}, "409": {"$ref": "#/responses/Error"}}}},
        "/v1/wizard/submit": {"post": {"tags": ["wizard"], "summary": "Submit the application", "parameters": [{"$ref": "#/parameters/SessionID"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/WizardResponse"}}, "400": {"$ref": "#/responses/Error"}, "409": {"$ref": "#/responses/Error"}}}},
        "/v1/applications/{id}": {"get": {"tags": ["applications"], "summary": "Get an application", "parameters": [{"$ref": "#/parameters/ID"}], "responses": {"200": {"description": "OK"}, "404": {"$ref": "#/responses/Error"}}}},
        "/v1/admin/applications/{id}/review": {"post": {"tags": ["admin"], "summary": "Review an application", "parameters": [{"$ref": "#/parameters/ID"}, {"in": "body", "name": "body", "required": true, "schema": {"type": "object", "properties": {"decision": {"type": "string", "enum": ["approved", "rejected"]}, "reason": {"type": "string"}}}}], "responses": {"200": {"description": "OK"}, "400": {"$ref": "#/responses/Error"}, "409": {"$ref": "#/responses/Error"}}}},
        "/v1/admin/profiles/{id}/plan": {"put": {"tags": ["admin"], "summary": "Change an owner's plan", "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}, {"in": "body", "name": "body", "required": true, "schema": {"type": "object", "properties": {"plan": {"type": "string", "enum": ["free", "standard", "premium", "business", "enterprise"]}}}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ChangePlanResponse"}}, "400": {"$ref": "#/responses/Error"}, "404": {"$ref": "#/responses/Error"}}}},
        "/v1/admin/jobs": {"get": {"tags": ["admin"], "summary": "Background job status", "responses": {"200": {"description": "OK"}}}},
        "/v1/admin/jobs/{name}/run": {"post": {"tags": ["admin"], "summary": "Run a job now", "parameters": [{"in": "path", "name": "name", "required": true, "type": "string", "enum": ["quota-audit"]}], "responses": {"202": {"description": "Accepted"}, "404": {"$ref": "#/responses/Error"}}}},
        "/v1/stores": {
            "get": {"tags": ["stores"], "summary": "List stores", "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/Store"}}}}},
            "post": {"tags": ["stores"], "summary": "Create a store", "consumes": ["multipart/form-data"], "parameters": [
                {"in": "formData", "name": "name", "required": true, "type": "string"},
                {"in": "formData", "name": "description", "type": "string"},
                {"in": "formData", "name": "category", "required": true, "type": "string"},
                {"in": "formData", "name": "logo", "type": "file"},
                {"in": "formData", "name": "logo_duration", "type": "string"}
            ], "responses": {"201": {"description": "Created"}, "400": {"$ref": "#/responses/Error"}, "409": {"$ref": "#/responses/Error"}, "422": {"$ref": "#/responses/Error"}}}
        },
        "/v1/stores/usage": {"get": {"tags": ["stores"], "summary": "Store quota usage", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/QuotaUsage"}}}}},
        "/v1/stores/{id}": {
            "get": {"tags": ["stores"], "summary": "Get a store", "parameters": [{"$ref": "#/parameters/ID"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Store"}}, "404": {"$ref": "#/responses/Error"}}},
            "patch": {"tags": ["stores"], "summary": "Update a store", "consumes": ["multipart/form-data"], "parameters": [{"$ref": "#/parameters/ID"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Store"}}, "401": {"$ref": "#/responses/Error"}, "422": {"$ref": "#/responses/Error"}}},
            "delete": {"tags": ["stores"], "summary": "Delete a store", "parameters": [{"$ref": "#/parameters/ID"}], "responses": {"204": {"description": "No Content"}, "404": {"$ref": "#/responses/Error"}}}
        }
    },
    "parameters": {
        "SessionID": {"in": "header", "name": "X-Session-ID", "type": "string", "description": "Wizard session"},
        "ID": {"in": "path", "name": "id", "required": true, "type": "string", "format": "uuid"}
    },
    "responses": {
        "Error": {"description": "Error", "schema": {"$ref": "#/definitions/ErrorResponse"}}
    },
    "definitions": {
        "ErrorResponse": {"type": "object", "properties": {"error": {"type": "object", "properties": {
            "code": {"type": "string"}, "message": {"type": "string"},
            "details": {"type": "object", "additionalProperties": {"type": "string"}},
            "retryable": {"type": "boolean"}}}}},
        "WizardResponse": {"type": "object", "properties": {
            "sessionId": {"type": "string"},
            "documentId": {"type": "string", "format": "uuid"}, "idempotencyKey": {"type": "string", "format": "uuid"},
            "step": {"type": "integer"}, "sections": {"type": "object"},
            "submitted": {"type": "boolean"}, "appliedAt": {"type": "string", "format": "date-time"}}},
        "Store": {"type": "object", "properties": {
            "id": {"type": "string", "format": "uuid"}, "owner_id": {"type": "string"}, "name": {"type": "string"},
            "description": {"type": "string"}, "category": {"type": "string"}, "logo_url": {"type": "string"},
            "is_active": {"type": "boolean"}, "verification_status": {"type": "string"},
            "created_at": {"type": "string", "format": "date-time"}, "updated_at": {"type": "string", "format": "date-time"}}},
        "ChangePlanResponse": {"type": "object", "properties": {
            "owner_id": {"type": "string"}, "plan": {"type": "string"}, "limit": {"type": "integer"}}},
        "QuotaUsage": {"type": "object", "properties": {
            "owner_id": {"type": "string"}, "plan": {"type": "string"}, "limit": {"type": "integer"}, "active": {"type": "integer"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Marketplace Seller API",
	Description:      "Seller onboarding wizard and plan-gated store management.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
