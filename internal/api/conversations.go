package api

import "net/http"

type CreateConversationRequest struct {
	Title string `json:"title"`
}

func (h *APIHandler) CreateConversationHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	conv, err := h.conversations.Create(r.Context(), currentUser(r).ID, req.Title)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	convs, err := h.conversations.List(r.Context(), currentUser(r).ID, skip, limit)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (h *APIHandler) SearchConversationsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	results, err := h.conversations.SearchSimilar(r.Context(), currentUser(r).ID, r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *APIHandler) GetConversationHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "conversationID")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	conv, err := h.conversations.Get(r.Context(), currentUser(r).ID, id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

type PostMessageRequest struct {
	Content string `json:"content"`
}

// PostMessageHandler runs one chat turn and answers with the stored user message.
// The assistant reply is read back through GetConversationHandler.
func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "conversationID")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req PostMessageRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	msg, err := h.conversations.AddMessage(r.Context(), currentUser(r).ID, id, req.Content)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *APIHandler) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "conversationID")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.conversations.Delete(r.Context(), currentUser(r).ID, id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
