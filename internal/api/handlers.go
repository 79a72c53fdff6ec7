package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/chatforms/intakegate/internal/models"
	"github.com/chatforms/intakegate/internal/store"
	"github.com/chatforms/intakegate/internal/util"
)

// createChatbotHandler handles POST /chatbots
func (s *Server) createChatbotHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("createChatbotHandler invoked", "method", r.Method, "path", r.URL.Path)

	var bot models.Chatbot
	if err := json.NewDecoder(r.Body).Decode(&bot); err != nil {
		slog.Warn("createChatbotHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if bot.ID == "" {
		bot.ID = uuid.NewString()
	}
	if err := bot.Validate(); err != nil {
		slog.Warn("createChatbotHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if err := s.st.SaveChatbot(bot); err != nil {
		slog.Error("createChatbotHandler save failed", "error", err, "chatbotID", bot.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save chatbot"))
		return
	}
	slog.Info("createChatbotHandler chatbot saved", "chatbotID", bot.ID)
	writeJSONResponse(w, http.StatusCreated, models.Success(bot))
}

// saveQuestionsHandler handles POST /chatbots/{id}/questions
func (s *Server) saveQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	chatbotID := r.PathValue("id")
	slog.Debug("saveQuestionsHandler invoked", "chatbotID", chatbotID)

	bot, err := s.st.GetChatbot(chatbotID)
	if err != nil {
		slog.Error("saveQuestionsHandler chatbot lookup failed", "error", err, "chatbotID", chatbotID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to look up chatbot"))
		return
	}
	if bot == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Chatbot not found"))
		return
	}

	var questions []models.Question
	if err := json.NewDecoder(r.Body).Decode(&questions); err != nil {
		slog.Warn("saveQuestionsHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := models.ValidateQuestions(questions); err != nil {
		slog.Warn("saveQuestionsHandler validation failed", "error", err, "chatbotID", chatbotID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if err := s.st.SaveQuestions(chatbotID, models.SortQuestions(questions)); err != nil {
		slog.Error("saveQuestionsHandler save failed", "error", err, "chatbotID", chatbotID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save questions"))
		return
	}
	slog.Info("saveQuestionsHandler questions saved", "chatbotID", chatbotID, "count", len(questions))
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Questions saved", nil))
}

// createConversationHandler handles POST /chatbots/{id}/conversations
func (s *Server) createConversationHandler(w http.ResponseWriter, r *http.Request) {
	chatbotID := r.PathValue("id")
	slog.Debug("createConversationHandler invoked", "chatbotID", chatbotID)

	var req models.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("createConversationHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("createConversationHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	bot, err := s.st.GetChatbot(chatbotID)
	if err != nil {
		slog.Error("createConversationHandler chatbot lookup failed", "error", err, "chatbotID", chatbotID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to look up chatbot"))
		return
	}
	if bot == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Chatbot not found"))
		return
	}

	now := time.Now()
	conv := store.Conversation{
		ID:        util.GenerateRandomID("conv-", 32),
		ChatbotID: chatbotID,
		UserID:    req.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.st.CreateConversation(conv); err != nil {
		slog.Error("createConversationHandler save failed", "error", err, "chatbotID", chatbotID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create conversation"))
		return
	}
	slog.Info("createConversationHandler conversation created", "conversationID", conv.ID, "chatbotID", chatbotID, "userID", req.UserID)
	writeJSONResponse(w, http.StatusCreated, models.Success(models.CreateConversationResponse{ConversationID: conv.ID}))
}

// welcomeHandler handles GET /chatbots/{id}/welcome
func (s *Server) welcomeHandler(w http.ResponseWriter, r *http.Request) {
	chatbotID := r.PathValue("id")
	userID := r.URL.Query().Get("user_id")
	conversationID := r.URL.Query().Get("conversation_id")
	slog.Debug("welcomeHandler invoked", "chatbotID", chatbotID, "userID", userID, "conversationID", conversationID)

	if userID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("user_id is required"))
		return
	}

	bot, err := s.st.GetChatbot(chatbotID)
	if err != nil {
		slog.Error("welcomeHandler chatbot lookup failed", "error", err, "chatbotID", chatbotID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to look up chatbot"))
		return
	}
	if bot == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Chatbot not found"))
		return
	}

	questions, err := s.st.ListQuestions(chatbotID)
	if err != nil {
		slog.Error("welcomeHandler question list failed", "error", err, "chatbotID", chatbotID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load questions"))
		return
	}
	existing, err := s.st.GetResponses(chatbotID, userID)
	if err != nil {
		slog.Error("welcomeHandler responses fetch failed", "error", err, "chatbotID", chatbotID, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load responses"))
		return
	}

	facts := models.WelcomeFacts{
		ChatbotName:       bot.Name,
		ChatbotPurpose:    bot.Purpose,
		HasQuestions:      len(questions) > 0,
		Questions:         questions,
		ExistingResponses: existing,
	}
	if conversationID != "" {
		conv, err := s.st.GetConversation(conversationID)
		if err != nil {
			slog.Error("welcomeHandler conversation lookup failed", "error", err, "conversationID", conversationID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to look up conversation"))
			return
		}
		if conv != nil {
			facts.IntakeCompleted = conv.IntakeCompleted
			hasMessages, err := s.st.ConversationHasMessages(conversationID)
			if err != nil {
				slog.Error("welcomeHandler message check failed", "error", err, "conversationID", conversationID)
				writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to check conversation messages"))
				return
			}
			facts.ConversationMessages = hasMessages
		}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(facts))
}

// commitHandler handles POST /conversations/{id}/commit
func (s *Server) commitHandler(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("id")
	slog.Debug("commitHandler invoked", "conversationID", conversationID)

	var req models.BatchCommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("commitHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("commitHandler validation failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if err := s.st.CommitIntake(conversationID, req.Messages, req.Responses); err != nil {
		if errors.Is(err, models.ErrConversationNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		slog.Error("commitHandler commit failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to commit intake"))
		return
	}
	slog.Info("commitHandler intake committed", "conversationID", conversationID, "messages", len(req.Messages), "responses", len(req.Responses))
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Intake committed", nil))
}

// defaultSuggestions is the static fallback shown when no generator is
// configured or generation fails.
func defaultSuggestions(bot models.Chatbot) []string {
	return []string{
		"What can you help me with?",
		"Tell me more about " + bot.Name + ".",
		"How do we get started?",
	}
}

// suggestionsHandler handles GET /chatbots/{id}/suggestions
func (s *Server) suggestionsHandler(w http.ResponseWriter, r *http.Request) {
	chatbotID := r.PathValue("id")
	slog.Debug("suggestionsHandler invoked", "chatbotID", chatbotID)

	bot, err := s.st.GetChatbot(chatbotID)
	if err != nil {
		slog.Error("suggestionsHandler chatbot lookup failed", "error", err, "chatbotID", chatbotID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to look up chatbot"))
		return
	}
	if bot == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Chatbot not found"))
		return
	}

	suggestions := defaultSuggestions(*bot)
	if s.suggest != nil {
		generated, err := s.suggest.Suggestions(r.Context(), *bot)
		if err != nil {
			// Suggestions are cosmetic; degrade to the fallback.
			slog.Warn("suggestionsHandler generation failed, using fallback", "error", err, "chatbotID", chatbotID)
		} else if len(generated) > 0 {
			suggestions = generated
		}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(models.SuggestionsResponse{Suggestions: suggestions}))
}

// healthHandler handles GET /health
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("healthy", nil))
}
