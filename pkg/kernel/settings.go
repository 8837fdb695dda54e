package kernel

import "net/http"

// handleGetSettings returns the active configuration with secrets masked.
func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.settings.GetMaskedConfig())
}
