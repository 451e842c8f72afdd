package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "Greedy course-to-room timetable assignment with borrowed-room relief",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Timetables", "description": "Scheduling runs, projections and exports"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A backing store is unreachable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/timetables": {
            "get": {
                "tags": ["Timetables"],
                "summary": "List recent scheduling runs",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Timetables"],
                "summary": "Schedule courses into rooms",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "Scheduled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Infeasible even with a borrowed room", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetables/{id}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Fetch a scheduling run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetables/{id}/exports": {
            "get": {
                "tags": ["Timetables"],
                "summary": "List rendered artifacts of a run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Rendered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Still rendering", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/export/{token}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Download an artifact via signed token",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid token"},
                    "410": {"description": "Expired token"}
                }
            }
        }
    },
    "definitions": {
        "Room": {
            "type": "object",
            "required": ["room_id", "room_type"],
            "properties": {
                "room_id": {"type": "string"},
                "room_type": {"type": "string", "enum": ["lecture", "lab"]},
                "capacity": {"type": "integer"}
            }
        },
        "Course": {
            "type": "object",
            "required": ["course_id"],
            "properties": {
                "course_id": {"type": "string"},
                "name": {"type": "string"},
                "hours_per_week": {"type": "integer"},
                "instructor": {"type": "string"},
                "requires_lab": {"type": "boolean"},
                "enrollment": {"type": "integer"},
                "priority": {"type": "integer"},
                "department": {"type": "string"}
            }
        },
        "AssignTimetableRequest": {
            "type": "object",
            "required": ["rooms"],
            "properties": {
                "rooms": {"type": "array", "items": {"$ref": "#/definitions/Room"}},
                "courses": {"type": "array", "items": {"$ref": "#/definitions/Course"}},
                "days": {"type": "array", "items": {"type": "string"}},
                "startHour": {"type": "integer"},
                "endHour": {"type": "integer"},
                "respectCapacity": {"type": "boolean"},
                "anchorDate": {"type": "string", "format": "date"},
                "borrowedRoomId": {"type": "string"}
            }
        },
        "ExportLink": {
            "type": "object",
            "properties": {
                "artifact": {"type": "string"},
                "format": {"type": "string"},
                "path": {"type": "string"},
                "url": {"type": "string"},
                "expires_at": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
