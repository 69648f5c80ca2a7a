package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/louisbranch/loreweaver/internal/dice"
	"github.com/louisbranch/loreweaver/internal/narrator"
	"github.com/louisbranch/loreweaver/internal/narrator/actions"
	"github.com/louisbranch/loreweaver/internal/narrator/directive"
	"github.com/louisbranch/loreweaver/internal/narrator/orchestrate"
	"github.com/louisbranch/loreweaver/internal/storage"
)

// Narrator runs one conversation exchange with the generative backend.
type Narrator interface {
	Send(ctx context.Context, history narrator.History, characterID string) orchestrate.Result
}

// Handler serves the adventure JSON API.
type Handler struct {
	characters storage.CharacterStore
	messages   storage.MessageStore
	narrator   Narrator
	recap      orchestrate.Generator
	roller     *dice.Roller
	// renderer re-renders stored model turns for the history endpoint. It
	// carries no sheet updater so replaying history never re-applies sheets.
	renderer *directive.Processor
}

// NewHandler builds the API handler. The recap backend is optional; without
// it the recap endpoint reports unavailable.
func NewHandler(characters storage.CharacterStore, messages storage.MessageStore, n Narrator, recap orchestrate.Generator, roller *dice.Roller) http.Handler {
	h := &Handler{
		characters: characters,
		messages:   messages,
		narrator:   n,
		recap:      recap,
		roller:     roller,
		renderer:   directive.NewProcessor(nil),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(http.MethodPost+" /api/characters", h.handleCreateCharacter)
	mux.HandleFunc(http.MethodGet+" /api/characters", h.handleListCharacters)
	mux.HandleFunc(http.MethodGet+" /api/characters/{id}", h.handleGetCharacter)
	mux.HandleFunc(http.MethodGet+" /api/characters/{id}/history", h.handleHistory)
	mux.HandleFunc(http.MethodGet+" /api/characters/{id}/sheet/revisions", h.handleSheetRevisions)
	mux.HandleFunc(http.MethodGet+" /api/characters/{id}/recap", h.handleRecap)
	mux.HandleFunc(http.MethodPost+" /api/characters/{id}/message", h.handleMessage)
	mux.HandleFunc(http.MethodPost+" /api/characters/{id}/choice", h.handleChoice)
	mux.HandleFunc(http.MethodPost+" /api/characters/{id}/multi-select", h.handleMultiSelect)
	mux.HandleFunc(http.MethodPost+" /api/characters/{id}/ordered-list", h.handleOrderedList)
	mux.HandleFunc(http.MethodPost+" /api/characters/{id}/roll", h.handleRoll)
	return mux
}

// messageReply is the payload returned after every conversation exchange.
type messageReply struct {
	Text        string `json:"text"`
	CharacterID string `json:"character_id"`
	Ok          bool   `json:"ok"`
}

type characterReply struct {
	ID       string                     `json:"id"`
	Name     string                     `json:"name"`
	GameName string                     `json:"game_name"`
	Sheet    map[string]json.RawMessage `json:"sheet"`
}

func toCharacterReply(character storage.Character) characterReply {
	return characterReply{
		ID:       character.ID,
		Name:     character.Name,
		GameName: character.GameName,
		Sheet:    character.Sheet,
	}
}

func (h *Handler) handleCreateCharacter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		GameName string `json:"game_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	character, err := h.characters.CreateCharacter(r.Context(), storage.Character{
		Name:     body.Name,
		GameName: body.GameName,
	})
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The opening prompt is hidden: it primes the backend but is never part
	// of the visible transcript.
	prompt := narrator.BuildInitialPrompt(character.GameName, character.Name)
	reply := h.exchange(w, r, character.ID, prompt, true)
	if reply == nil {
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Character characterReply `json:"character"`
		Message   messageReply   `json:"message"`
	}{
		Character: toCharacterReply(character),
		Message:   *reply,
	})
}

func (h *Handler) handleListCharacters(w http.ResponseWriter, r *http.Request) {
	characters, err := h.characters.ListCharacters(r.Context())
	if err != nil {
		log.Printf("list characters: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "could not list characters")
		return
	}
	replies := make([]characterReply, 0, len(characters))
	for _, character := range characters {
		replies = append(replies, toCharacterReply(character))
	}
	writeJSON(w, http.StatusOK, replies)
}

func (h *Handler) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	character, ok := h.loadCharacter(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCharacterReply(character))
}

// historyEntry is one visible transcript row. Model turns re-render their
// widgets; user turns only convert line-break escapes.
type historyEntry struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
	Text string `json:"text"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	character, ok := h.loadCharacter(w, r)
	if !ok {
		return
	}
	messages, err := h.messages.ListMessages(r.Context(), character.ID)
	if err != nil {
		log.Printf("list messages for %s: %v", character.ID, err)
		writeJSONError(w, http.StatusInternalServerError, "could not load history")
		return
	}

	entries := make([]historyEntry, 0, len(messages))
	for _, message := range messages {
		if message.Hidden {
			continue
		}
		entries = append(entries, historyEntry{
			ID:   message.ID,
			Role: string(message.Role),
			Text: h.renderStored(r.Context(), message),
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

// renderStored renders a persisted turn for display. A stored model turn
// that no longer validates falls back to its raw text with line breaks
// converted, so old transcripts stay readable.
func (h *Handler) renderStored(ctx context.Context, message storage.Message) string {
	if message.Role == narrator.RoleModel {
		rendered, err := h.renderer.Process(ctx, message.Content, "")
		if err == nil {
			return rendered
		}
		log.Printf("re-render message %d: %v", message.ID, err)
	}
	return strings.ReplaceAll(message.Content, `\n`, "<br>")
}

func (h *Handler) handleSheetRevisions(w http.ResponseWriter, r *http.Request) {
	character, ok := h.loadCharacter(w, r)
	if !ok {
		return
	}
	revisions, err := h.characters.ListSheetRevisions(r.Context(), character.ID)
	if err != nil {
		log.Printf("list sheet revisions for %s: %v", character.ID, err)
		writeJSONError(w, http.StatusInternalServerError, "could not load sheet revisions")
		return
	}
	writeJSON(w, http.StatusOK, revisions)
}

// recapPrompt asks the backend for a plain-prose summary. Directive blocks
// are explicitly excluded so the reply needs no extraction pass.
const recapPrompt = "Summarize the adventure so far in a few short " +
	"paragraphs addressed to the player. Do not emit any [APPDATA] or " +
	"[CHARACTERSHEET] blocks, only prose."

func (h *Handler) handleRecap(w http.ResponseWriter, r *http.Request) {
	if h.recap == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "recap is not configured")
		return
	}
	character, ok := h.loadCharacter(w, r)
	if !ok {
		return
	}
	messages, err := h.messages.ListMessages(r.Context(), character.ID)
	if err != nil {
		log.Printf("list messages for %s: %v", character.ID, err)
		writeJSONError(w, http.StatusInternalServerError, "could not load history")
		return
	}
	if len(messages) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"recap": ""})
		return
	}

	newest := messages[len(messages)-1].ID
	if character.Recap != "" && character.LastRecapMessageID == newest {
		writeJSON(w, http.StatusOK, map[string]string{"recap": character.Recap})
		return
	}

	history := toHistory(messages).Append(narrator.RoleUser, recapPrompt)
	recap, err := h.recap.Generate(r.Context(), history)
	if err != nil {
		log.Printf("generate recap for %s: %v", character.ID, err)
		writeJSONError(w, http.StatusBadGateway, "could not generate recap")
		return
	}
	recap = strings.TrimSpace(recap)
	if err := h.characters.SaveRecap(r.Context(), character.ID, recap, newest); err != nil {
		log.Printf("save recap for %s: %v", character.ID, err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"recap": recap})
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	character, ok := h.loadCharacter(w, r)
	if !ok {
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeJSONError(w, http.StatusBadRequest, "message text is required")
		return
	}
	h.respondExchange(w, r, character.ID, body.Text)
}

func (h *Handler) handleChoice(w http.ResponseWriter, r *http.Request) {
	character, ok := h.loadCharacter(w, r)
	if !ok {
		return
	}
	var body struct {
		Choice string `json:"choice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(body.Choice) == "" {
		writeJSONError(w, http.StatusBadRequest, "choice is required")
		return
	}
	h.respondExchange(w, r, character.ID, actions.Choice(body.Choice))
}

func (h *Handler) handleMultiSelect(w http.ResponseWriter, r *http.Request) {
	character, ok := h.loadCharacter(w, r)
	if !ok {
		return
	}
	var body struct {
		Choices []string `json:"choices"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(body.Choices) == 0 {
		writeJSONError(w, http.StatusBadRequest, "at least one choice is required")
		return
	}
	h.respondExchange(w, r, character.ID, actions.MultiChoice(body.Choices))
}

func (h *Handler) handleOrderedList(w http.ResponseWriter, r *http.Request) {
	character, ok := h.loadCharacter(w, r)
	if !ok {
		return
	}
	var body struct {
		Scores []struct {
			Name  string `json:"name"`
			Value int    `json:"value"`
		} `json:"scores"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(body.Scores) == 0 {
		writeJSONError(w, http.StatusBadRequest, "at least one score is required")
		return
	}
	scores := make([]actions.Score, 0, len(body.Scores))
	for _, score := range body.Scores {
		scores = append(scores, actions.Score{Name: score.Name, Value: score.Value})
	}
	h.respondExchange(w, r, character.ID, actions.OrderedScores(scores))
}

func (h *Handler) handleRoll(w http.ResponseWriter, r *http.Request) {
	character, ok := h.loadCharacter(w, r)
	if !ok {
		return
	}
	// The body is the same JSON the roll button carries in its onclick
	// payload, echoed back by the client.
	var params directive.DiceRoll
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if params.Title == "" {
		params.Title = "dice"
	}
	if params.NumRolls <= 0 {
		params.NumRolls = 1
	}

	results, err := h.roller.Roll(dice.Request{
		Mechanic:     params.Mechanic,
		Dice:         params.Dice,
		NumRolls:     params.NumRolls,
		Advantage:    params.Advantage,
		Disadvantage: params.Disadvantage,
	})
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondExchange(w, r, character.ID, actions.RollSummary(params.Title, results))
}

// respondExchange runs one exchange and writes its reply.
func (h *Handler) respondExchange(w http.ResponseWriter, r *http.Request, characterID, playerText string) {
	if reply := h.exchange(w, r, characterID, playerText, false); reply != nil {
		writeJSON(w, http.StatusOK, *reply)
	}
}

// exchange persists the player turn, runs the narrator, and persists the
// model reply when the exchange succeeds. Fallback replies are returned to
// the client but never stored as model turns. A nil return means an error
// response was already written.
func (h *Handler) exchange(w http.ResponseWriter, r *http.Request, characterID, playerText string, hidden bool) *messageReply {
	ctx := r.Context()
	if _, err := h.messages.AppendMessage(ctx, storage.Message{
		CharacterID: characterID,
		Role:        narrator.RoleUser,
		Content:     playerText,
		Hidden:      hidden,
	}); err != nil {
		log.Printf("append player turn for %s: %v", characterID, err)
		writeJSONError(w, http.StatusInternalServerError, "could not record message")
		return nil
	}

	messages, err := h.messages.ListMessages(ctx, characterID)
	if err != nil {
		log.Printf("list messages for %s: %v", characterID, err)
		writeJSONError(w, http.StatusInternalServerError, "could not load history")
		return nil
	}

	result := h.narrator.Send(ctx, toHistory(messages), characterID)
	if result.Ok() {
		if _, err := h.messages.AppendMessage(ctx, storage.Message{
			CharacterID: characterID,
			Role:        narrator.RoleModel,
			Content:     result.Raw,
		}); err != nil {
			log.Printf("append model turn for %s: %v", characterID, err)
		}
	}

	return &messageReply{
		Text:        result.Rendered,
		CharacterID: characterID,
		Ok:          result.Ok(),
	}
}

func (h *Handler) loadCharacter(w http.ResponseWriter, r *http.Request) (storage.Character, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	character, err := h.characters.GetCharacter(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "character not found")
		} else {
			log.Printf("get character %s: %v", id, err)
			writeJSONError(w, http.StatusInternalServerError, "could not load character")
		}
		return storage.Character{}, false
	}
	return character, true
}

// toHistory converts stored turns into a conversation, hidden turns
// included, since the backend needs the full context.
func toHistory(messages []storage.Message) narrator.History {
	history := make(narrator.History, 0, len(messages))
	for _, message := range messages {
		history = append(history, narrator.Turn{
			Role:    message.Role,
			Content: message.Content,
		})
	}
	return history
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
