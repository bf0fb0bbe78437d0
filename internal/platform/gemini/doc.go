// Package gemini adapts Google's Gemini API to the droid execution
// client interface. Streamed generation responses surface as typed
// droid chunks; the session and working-directory hints in a query are
// presentation metadata only, since the Gemini API is stateless.
package gemini
