package logging

import (
	"github.com/rs/zerolog/log"
)

// Event names shared with log dashboards.
const (
	EventAgentCall      = "agent_call"
	EventClassification = "classification"
	EventStreaming      = "streaming_event"
	EventAPIError       = "application_error"
	EventAPICall        = "api_call"
)

// AgentCall records one agent invocation.
func AgentCall(agentType string, latencyMs int64, success bool, errorCode, userID string) {
	ev := log.Info()
	if !success {
		ev = log.Warn()
	}
	ev = ev.Str("event", EventAgentCall).
		Str("agent_type", agentType).
		Int64("latency_ms", latencyMs).
		Bool("success", success).
		Str("user_id", userID)
	if errorCode != "" {
		ev = ev.Str("error_code", errorCode)
	}
	ev.Msg("agent call")
}

// Classification records a routing verdict.
func Classification(agentType string, confidence float64, reasoning string, latencyMs int64, method string) {
	log.Info().
		Str("event", EventClassification).
		Str("agent_type", agentType).
		Float64("confidence", confidence).
		Str("reasoning", reasoning).
		Int64("latency_ms", latencyMs).
		Str("method", method).
		Msg("message classified")
}

// StreamingEvent records a lifecycle step of an SSE stream.
func StreamingEvent(sessionID, messageID, eventType string, chunks int) {
	log.Debug().
		Str("event", EventStreaming).
		Str("session_id", sessionID).
		Str("message_id", messageID).
		Str("stream_event", eventType).
		Int("chunks", chunks).
		Msg("stream event")
}

// APIError records a caught error with a truncated query preview.
func APIError(err error, operation, query string) {
	ev := log.Error().
		Str("event", EventAPIError).
		Err(err).
		Str("operation", operation)
	if query != "" {
		ev = ev.Str("query_preview", Preview(query))
	}
	ev.Msg("operation failed")
}

// APICall records an outbound call to a third-party API.
func APICall(service, endpoint string, latencyMs int64, status int) {
	log.Debug().
		Str("event", EventAPICall).
		Str("service", service).
		Str("endpoint", endpoint).
		Int64("latency_ms", latencyMs).
		Int("status", status).
		Msg("outbound call")
}
