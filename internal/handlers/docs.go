package handlers

import (
	"encoding/json"
	"net/http"
)

type object = map[string]interface{}

func queryParam(name, description string, schema object) object {
	return object{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

func sessionIDParam() object {
	return object{
		"name":        "id",
		"in":          "path",
		"description": "Playback session ID",
		"required":    true,
		"schema":      object{"type": "string", "format": "uuid"},
	}
}

func ref(name string) object {
	return object{"$ref": "#/components/schemas/" + name}
}

func jsonResponse(description string, schema object) object {
	return object{
		"description": description,
		"content": object{
			"application/json": object{"schema": schema},
		},
	}
}

func errorResponse(description string) object {
	return jsonResponse(description, ref("Error"))
}

func nullableNumber() object {
	return object{"type": "number", "nullable": true}
}

var dateParams = []object{
	queryParam("start_date", "First day of the range (YYYY-MM-DD), defaults to the first day of data", object{"type": "string", "format": "date"}),
	queryParam("end_date", "Last day of the range (YYYY-MM-DD), defaults to the last day of data", object{"type": "string", "format": "date"}),
}

var fieldParam = queryParam("field", "Tracked field to chart; repeat or comma-separate, defaults to all", object{
	"type": "array",
	"items": object{
		"type": "string",
		"enum": []string{"irradiance", "temperature"},
	},
})

// OpenAPISpec returns the OpenAPI 3.0 document for the dashboard API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	schemas := object{
		"Error": object{
			"type": "object",
			"properties": object{
				"error":   object{"type": "string"},
				"message": object{"type": "string"},
				"code":    object{"type": "integer"},
			},
		},
		"DateRange": object{
			"type": "object",
			"properties": object{
				"start_date": object{"type": "string", "format": "date"},
				"end_date":   object{"type": "string", "format": "date"},
			},
		},
		"Metric": object{
			"type": "object",
			"properties": object{
				"field":               object{"type": "string"},
				"label":               object{"type": "string"},
				"unit":                object{"type": "string"},
				"open_field":          nullableNumber(),
				"agrivoltaic":         nullableNumber(),
				"difference":          nullableNumber(),
				"open_field_display":  object{"type": "string"},
				"agrivoltaic_display": object{"type": "string"},
				"difference_display":  object{"type": "string"},
			},
		},
		"ComparisonSeries": object{
			"type": "object",
			"properties": object{
				"field":      object{"type": "string"},
				"value_name": object{"type": "string"},
				"points": object{
					"type": "array",
					"items": object{
						"type": "object",
						"properties": object{
							"time":    object{"type": "string", "format": "date-time"},
							"value":   nullableNumber(),
							"variant": object{"type": "string"},
						},
					},
				},
			},
		},
		"PlaybackView": object{
			"type": "object",
			"properties": object{
				"session_id":   object{"type": "string"},
				"cursor":       object{"type": "integer"},
				"total_rows":   object{"type": "integer"},
				"current_time": object{"type": "string", "format": "date-time"},
				"metrics":      object{"type": "array", "items": ref("Metric")},
				"series":       object{"type": "array", "items": ref("ComparisonSeries")},
				"notice":       object{"type": "string"},
			},
		},
		"AdvanceResult": object{
			"type": "object",
			"properties": object{
				"session_id": object{"type": "string"},
				"cursor":     object{"type": "integer"},
				"total_rows": object{"type": "integer"},
				"completed":  object{"type": "boolean"},
			},
		},
		"FilterView": object{
			"type": "object",
			"properties": object{
				"requested": ref("DateRange"),
				"effective": ref("DateRange"),
				"bounds":    ref("DateRange"),
				"row_count": object{"type": "integer"},
				"metrics":   object{"type": "array", "items": ref("Metric")},
				"series":    object{"type": "array", "items": ref("ComparisonSeries")},
			},
		},
		"DatasetSummary": object{
			"type": "object",
			"properties": object{
				"row_count":  object{"type": "integer"},
				"first_time": object{"type": "string", "format": "date-time"},
				"last_time":  object{"type": "string", "format": "date-time"},
				"bounds":     ref("DateRange"),
				"sites": object{
					"type": "array",
					"items": object{
						"type": "object",
						"properties": object{
							"site":    object{"type": "string"},
							"label":   object{"type": "string"},
							"columns": object{"type": "array", "items": object{"type": "string"}},
							"version": object{"type": "string"},
						},
					},
				},
			},
		},
	}

	spec := object{
		"openapi": "3.0.0",
		"info": object{
			"title":       "Agrivoltaic Dashboard API",
			"description": "Open field versus agrivoltaic irradiance and temperature: playback, date-range filtering and CSV reports",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": object{
			"/api/dataset": object{
				"get": object{
					"summary": "Describe the loaded dataset",
					"responses": object{
						"200": jsonResponse("Dataset summary", ref("DatasetSummary")),
						"503": errorResponse("Input data missing or invalid"),
					},
				},
			},
			"/api/playback/sessions": object{
				"post": object{
					"summary":    "Start a playback session",
					"parameters": []object{fieldParam},
					"responses": object{
						"201": jsonResponse("Session created at row 0", ref("PlaybackView")),
						"400": errorResponse("Invalid field"),
						"503": errorResponse("Input data missing or invalid"),
					},
				},
			},
			"/api/playback/sessions/{id}": object{
				"get": object{
					"summary":     "Render a playback session",
					"description": "Rows up to the cursor; a completion notice appears once after wraparound",
					"parameters":  []object{sessionIDParam(), fieldParam},
					"responses": object{
						"200": jsonResponse("Current view", ref("PlaybackView")),
						"404": errorResponse("Unknown session"),
					},
				},
				"delete": object{
					"summary":    "Delete a playback session",
					"parameters": []object{sessionIDParam()},
					"responses": object{
						"204": object{"description": "Deleted"},
						"404": errorResponse("Unknown session"),
					},
				},
			},
			"/api/playback/sessions/{id}/advance": object{
				"post": object{
					"summary":     "Advance one row",
					"description": "From the last row the cursor wraps to 0 and completed is true",
					"parameters":  []object{sessionIDParam()},
					"responses": object{
						"200": jsonResponse("Step result", ref("AdvanceResult")),
						"404": errorResponse("Unknown session"),
					},
				},
			},
			"/api/playback/sessions/{id}/reset": object{
				"post": object{
					"summary":    "Move the cursor back to row 0",
					"parameters": []object{sessionIDParam()},
					"responses": object{
						"200": jsonResponse("Reset result", ref("AdvanceResult")),
						"404": errorResponse("Unknown session"),
					},
				},
			},
			"/api/filter": object{
				"get": object{
					"summary":     "Filter by date range",
					"description": "Dates are clamped to the data; metrics are omitted when no row matches",
					"parameters":  append(append([]object{}, dateParams...), fieldParam),
					"responses": object{
						"200": jsonResponse("Filtered view", ref("FilterView")),
						"400": errorResponse("Invalid date or field"),
					},
				},
			},
			"/api/filter/report.csv": object{
				"get": object{
					"summary":    "Download the filtered tables side by side",
					"parameters": dateParams,
					"responses": object{
						"200": object{
							"description": "agrivoltaic_report.csv",
							"content": object{
								"text/csv": object{"schema": object{"type": "string"}},
							},
						},
						"400": errorResponse("Invalid date"),
					},
				},
			},
			"/health": object{
				"get": object{
					"summary": "Health check",
					"responses": object{
						"200": jsonResponse("API is healthy", object{
							"type": "object",
							"properties": object{
								"status": object{"type": "string"},
							},
						}),
					},
				},
			},
			"/metrics": object{
				"get": object{
					"summary": "Prometheus metrics",
					"responses": object{
						"200": object{
							"description": "Prometheus metrics in text format",
							"content": object{
								"text/plain": object{"schema": object{"type": "string"}},
							},
						},
					},
				},
			},
		},
		"components": object{"schemas": schemas},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
