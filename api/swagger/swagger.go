package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Club Collab API",
        "description": "Live classroom collaboration engine for programming club sessions",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "presence", "description": "Class and team join/leave"},
        {"name": "teams", "description": "Team control flags"},
        {"name": "events", "description": "Session event history"},
        {"name": "submissions", "description": "Solution sending and grading"},
        {"name": "reports", "description": "Event-history exports"},
        {"name": "realtime", "description": "Websocket collaboration channel"}
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
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/ws": {
            "get": {
                "tags": ["realtime"],
                "summary": "Open the realtime collaboration channel",
                "parameters": [
                    {"name": "token", "in": "query", "type": "string"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/classes/{id}/join": {
            "post": {
                "tags": ["presence"],
                "summary": "Join a live class session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Not authorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Not in session or already joined", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{id}/leave": {
            "post": {
                "tags": ["presence"],
                "summary": "Leave a class session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/classes/{id}/events": {
            "get": {
                "tags": ["events"],
                "summary": "List a class's events newest-first",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{id}/export": {
            "get": {
                "tags": ["reports"],
                "summary": "Export a class's session history",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Curators only", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download": {
            "get": {
                "tags": ["reports"],
                "summary": "Download a previously exported artifact",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Invalid token"}
                }
            }
        },
        "/teams/{id}/join": {
            "post": {
                "tags": ["presence"],
                "summary": "Join a team as curator",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Already in another team", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teams/{id}/leave": {
            "post": {
                "tags": ["presence"],
                "summary": "Leave a team",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/teams/{id}/curators": {
            "get": {
                "tags": ["presence"],
                "summary": "List curators joined to a team",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teams/{id}/curators/{curatorID}": {
            "get": {
                "tags": ["presence"],
                "summary": "Check whether a curator is joined to a team",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "curatorID", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teams/{id}/block": {
            "post": {
                "tags": ["teams"],
                "summary": "Block or unblock a team's submissions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BlockTeamRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Not a joined curator", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teams/{id}/hand": {
            "post": {
                "tags": ["teams"],
                "summary": "Raise or lower the team's hand",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Not allowed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teams/{id}/task": {
            "post": {
                "tags": ["teams"],
                "summary": "Select the team's active task",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SelectTaskRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Elder only", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Task not in class", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teams/{id}/status": {
            "get": {
                "tags": ["teams"],
                "summary": "Get the team's control-state snapshot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/teams/{id}/submissions": {
            "get": {
                "tags": ["submissions"],
                "summary": "List a team's submissions newest-first",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["submissions"],
                "summary": "Send the team's solution for grading",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Elder only", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "423": {"description": "Team blocked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{id}": {
            "get": {
                "tags": ["submissions"],
                "summary": "Fetch one submission",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grading/results": {
            "post": {
                "tags": ["submissions"],
                "summary": "Grading runner callback",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GradingResultRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid callback key", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Event": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "time": {"type": "string"},
                "type": {"type": "string"},
                "class_id": {"type": "integer"},
                "team_id": {"type": "integer"},
                "task_id": {"type": "integer"},
                "submission_id": {"type": "integer"},
                "actor_id": {"type": "integer"},
                "actor_role": {"type": "string"}
            }
        },
        "TeamStatus": {
            "type": "object",
            "properties": {
                "team_id": {"type": "integer"},
                "is_blocked": {"type": "boolean"},
                "hand_raised": {"type": "boolean"},
                "selected_task_id": {"type": "integer"}
            }
        },
        "Submission": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "team_id": {"type": "integer"},
                "task_id": {"type": "integer"},
                "code": {"type": "string"},
                "language": {"type": "string"},
                "status": {"type": "string", "enum": ["NEW", "IN_PROCESS", "OK", "FAILED"]},
                "completion_time": {"type": "integer"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "BlockTeamRequest": {
            "type": "object",
            "properties": {
                "blocked": {"type": "boolean"}
            }
        },
        "SelectTaskRequest": {
            "type": "object",
            "properties": {
                "task_id": {"type": "integer"}
            },
            "required": ["task_id"]
        },
        "SubmitRequest": {
            "type": "object",
            "properties": {
                "task_id": {"type": "integer"},
                "code": {"type": "string"},
                "language": {"type": "string"}
            },
            "required": ["task_id"]
        },
        "GradingResultRequest": {
            "type": "object",
            "properties": {
                "submission_id": {"type": "integer"},
                "passed": {"type": "boolean"},
                "duration_seconds": {"type": "integer"},
                "detail": {"type": "string"}
            },
            "required": ["submission_id"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
