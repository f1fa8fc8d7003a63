// Package chat drives the conversational slot-filling pipeline: one turn
// loads prior form state, delegates extraction to the language model, merges
// the result, and commits a domain record once the form completes.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mnuel1/chat-fieldiq/internal/domain/fielderr"
	"github.com/mnuel1/chat-fieldiq/internal/domain/models"
	"github.com/mnuel1/chat-fieldiq/pkg/keylock"
)

// Intent identifies what the farmer is trying to do this turn.
type Intent int

const (
	IntentUnknown         Intent = 0
	IntentGeneralQuestion Intent = 1
	IntentHealthLog       Intent = 2
	IntentPerformanceLog  Intent = 3
	IntentPracticeLog     Intent = 4
	IntentOutOfScope      Intent = 5
)

// NextActionComplete is the extraction signal that every required field has
// been collected and the form should be committed.
const NextActionComplete = "log_complete"

// ExtractionRequest carries everything the NLU collaborator needs for one
// turn. Prompt content is the collaborator's concern, not the orchestrator's.
type ExtractionRequest struct {
	Intent         Intent
	Utterance      string
	History        []models.ChatMessage
	FormSummary    string
	ProgramContext string
	Today          string
	Language       string
}

// ExtractionResult is the structured output of one extraction call.
type ExtractionResult struct {
	NewFields  map[string]any
	NextAction string
	Response   string
	Category   string
}

// Extractor is the NLU collaborator contract. Implementations must return
// fielderr.ErrExtraction when the model output cannot be parsed against the
// expected schema.
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (ExtractionResult, error)
	ClassifyIntent(ctx context.Context, utterance string) (Intent, ExtractionResult, error)
	DetectLanguage(ctx context.Context, utterance string) (string, error)
}

// ConversationStore is the chat persistence contract.
type ConversationStore interface {
	GetOrCreate(ctx context.Context, userID string) (*models.Conversation, error)
	Get(ctx context.Context, conversationID string) (*models.Conversation, error)
	ReplaceFormData(ctx context.Context, conversationID string, form map[string]any) error
	AppendMessage(ctx context.Context, conversationID string, role models.MessageRole, text string, metadata map[string]any) error
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.ChatMessage, error)
}

// Programs supplies active feed program context for extraction prompts and
// the has-active-program gate on log intents.
type Programs interface {
	GetActiveProgram(ctx context.Context, farmerID string) (*models.FeedProgram, error)
	ActiveFeedProduct(ctx context.Context, farmerID string) (*models.ActiveFeedProduct, error)
}

// KnowledgeBase mirrors chat exchanges into the FAQ store. At-least-once:
// duplicates are acceptable, loss is not.
type KnowledgeBase interface {
	InsertFAQ(ctx context.Context, entry models.FAQEntry) error
}

// Profiles resolves farmer identity.
type Profiles interface {
	GetUserProfile(ctx context.Context, farmerID string) (*models.UserProfile, error)
}

// CompletionFunc commits a completed form as a domain record. It is invoked
// exactly once per completed form; a non-nil error preserves the form state
// for retry on a later turn.
type CompletionFunc func(ctx context.Context, farmerID, companyID string, formData map[string]any, result ExtractionResult) error

// Completions maps each log intent to its caller-supplied commit function.
type Completions struct {
	HealthIncident CompletionFunc
	PerformanceLog CompletionFunc
}

// TurnRequest is one inbound chat turn.
type TurnRequest struct {
	UserID         string
	ConversationID string
	Prompt         string
	IntentID       *int
}

// TurnResult is the orchestrator's reply for one turn.
type TurnResult struct {
	ConversationID string         `json:"conversation_id"`
	Intent         Intent         `json:"intent"`
	Response       string         `json:"response"`
	Category       string         `json:"category"`
	NextAction     string         `json:"next_action"`
	FormData       map[string]any `json:"form_data"`
	Completed      bool           `json:"completed"`
}

// Service is the slot-filling orchestrator.
type Service struct {
	conversations ConversationStore
	extractor     Extractor
	programs      Programs
	kb            KnowledgeBase
	profiles      Profiles
	completions   Completions
	locks         *keylock.KeyLock
	logger        *zap.Logger
	maxHistory    int
	now           func() time.Time
}

// NewService wires the orchestrator.
func NewService(conversations ConversationStore, extractor Extractor, programs Programs, kb KnowledgeBase, profiles Profiles, completions Completions, maxHistory int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxHistory <= 0 {
		maxHistory = 6
	}
	return &Service{
		conversations: conversations,
		extractor:     extractor,
		programs:      programs,
		kb:            kb,
		profiles:      profiles,
		completions:   completions,
		locks:         keylock.New(),
		logger:        logger,
		maxHistory:    maxHistory,
		now:           time.Now,
	}
}

// HandleTurn processes one conversational turn end to end.
func (s *Service) HandleTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt must not be empty", fielderr.ErrValidation)
	}

	profile, err := s.profiles.GetUserProfile(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: farmer %s does not exist", fielderr.ErrNotFound, req.UserID)
	}

	conversation, err := s.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	intent := IntentUnknown
	if req.IntentID != nil && *req.IntentID > 0 {
		intent = Intent(*req.IntentID)
	} else {
		classified, classifierResult, err := s.extractor.ClassifyIntent(ctx, req.Prompt)
		if err != nil {
			return nil, err
		}
		intent = classified
		if intent == IntentOutOfScope {
			// Out-of-scope prompts get the classifier's own reply and leave
			// no trace in the conversation.
			return &TurnResult{
				ConversationID: conversation.ID,
				Intent:         intent,
				Response:       classifierResult.Response,
				Category:       classifierResult.Category,
				NextAction:     classifierResult.NextAction,
			}, nil
		}
	}

	// Two concurrent turns on the same conversation must not interleave
	// their read-merge-write of form_data.
	s.locks.Lock(conversation.ID)
	defer s.locks.Unlock(conversation.ID)

	// The pre-lock fetch may have raced another turn's merge; the form state
	// used for merging has to come from inside the critical section.
	conversationID := conversation.ID
	conversation, err = s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, fmt.Errorf("%w: conversation %s", fielderr.ErrNotFound, conversationID)
	}

	switch intent {
	case IntentGeneralQuestion:
		return s.handleAdvisory(ctx, profile, conversation, intent, req.Prompt)
	case IntentPracticeLog:
		// Practice reports are advisory in shape but still require a running
		// feed program, like the structured logs.
		if _, err := s.programs.GetActiveProgram(ctx, profile.ID); err != nil {
			if errors.Is(err, fielderr.ErrNotFound) {
				return &TurnResult{
					ConversationID: conversation.ID,
					Intent:         intent,
					Response:       noProgramReply(req.Prompt, intent),
					Category:       "no_active_program",
					NextAction:     "suggest_start_program",
				}, nil
			}
			return nil, err
		}
		return s.handleAdvisory(ctx, profile, conversation, intent, req.Prompt)
	case IntentHealthLog:
		return s.handleLog(ctx, profile, conversation, intent, req.Prompt, s.completions.HealthIncident)
	case IntentPerformanceLog:
		return s.handleLog(ctx, profile, conversation, intent, req.Prompt, s.completions.PerformanceLog)
	default:
		return nil, fmt.Errorf("%w: unsupported intent %d", fielderr.ErrValidation, intent)
	}
}

// handleAdvisory answers general questions and local-practice reports. These
// turns carry no form state; the exchange is appended and mirrored to the
// knowledge base.
func (s *Service) handleAdvisory(ctx context.Context, profile *models.UserProfile, conversation *models.Conversation, intent Intent, prompt string) (*TurnResult, error) {
	extraction, err := s.extract(ctx, conversation, intent, prompt, nil)
	if err != nil {
		return nil, err
	}

	s.recordExchange(ctx, conversation.ID, profile.CompanyID, prompt, extraction, nil, "")

	return &TurnResult{
		ConversationID: conversation.ID,
		Intent:         intent,
		Response:       extraction.Response,
		Category:       extraction.Category,
		NextAction:     extraction.NextAction,
	}, nil
}

// handleLog runs one slot-filling turn for a structured log form.
func (s *Service) handleLog(ctx context.Context, profile *models.UserProfile, conversation *models.Conversation, intent Intent, prompt string, complete CompletionFunc) (*TurnResult, error) {
	activeProgram, err := s.programs.GetActiveProgram(ctx, profile.ID)
	if err != nil {
		if errors.Is(err, fielderr.ErrNotFound) {
			reply := noProgramReply(prompt, intent)
			return &TurnResult{
				ConversationID: conversation.ID,
				Intent:         intent,
				Response:       reply,
				Category:       "no_active_program",
				NextAction:     "suggest_start_program",
			}, nil
		}
		return nil, err
	}

	formData := cloneForm(conversation.FormData)

	extraction, err := s.extract(ctx, conversation, intent, prompt, formData)
	if err != nil {
		return nil, err
	}

	merged := mergeFields(formData, extraction.NewFields, allowedFields(intent))

	if err := s.conversations.ReplaceFormData(ctx, conversation.ID, merged); err != nil {
		return nil, err
	}

	completed := false
	if extraction.NextAction == NextActionComplete {
		if err := complete(ctx, profile.ID, profile.CompanyID, merged, extraction); err != nil {
			// Keep the collected fields so the farmer can retry.
			s.logger.Error("completion callback failed",
				zap.String("conversation_id", conversation.ID),
				zap.Int("intent", int(intent)),
				zap.Error(err))
		} else {
			completed = true
			if err := s.conversations.ReplaceFormData(ctx, conversation.ID, nil); err != nil {
				s.logger.Error("failed clearing completed form",
					zap.String("conversation_id", conversation.ID), zap.Error(err))
			}
		}
	}

	s.recordExchange(ctx, conversation.ID, profile.CompanyID, prompt, extraction, merged, activeProgram.ID)

	result := &TurnResult{
		ConversationID: conversation.ID,
		Intent:         intent,
		Response:       extraction.Response,
		Category:       extraction.Category,
		NextAction:     extraction.NextAction,
		FormData:       merged,
		Completed:      completed,
	}
	if completed {
		result.FormData = map[string]any{}
	}
	return result, nil
}

// extract assembles the collaborator request and performs the extraction
// call. Nothing is persisted before this returns, so an extraction failure
// aborts the turn with form state untouched.
func (s *Service) extract(ctx context.Context, conversation *models.Conversation, intent Intent, prompt string, formData map[string]any) (ExtractionResult, error) {
	history, err := s.conversations.RecentMessages(ctx, conversation.ID, s.maxHistory)
	if err != nil {
		return ExtractionResult{}, err
	}

	language, err := s.extractor.DetectLanguage(ctx, prompt)
	if err != nil {
		s.logger.Debug("language detection failed, defaulting to English", zap.Error(err))
		language = "English"
	}

	req := ExtractionRequest{
		Intent:         intent,
		Utterance:      prompt,
		History:        history,
		FormSummary:    formSummary(formData),
		ProgramContext: s.programContext(ctx, conversation.UserID),
		Today:          s.now().UTC().Format("2006/01/02"),
		Language:       language,
	}

	extraction, err := s.extractor.Extract(ctx, req)
	if err != nil {
		return ExtractionResult{}, err
	}
	return extraction, nil
}

// recordExchange appends both turn messages and mirrors the exchange into
// the knowledge base. One bounded retry covers transient store failures;
// a duplicate FAQ entry is preferable to a lost one.
func (s *Service) recordExchange(ctx context.Context, conversationID, companyID, prompt string, extraction ExtractionResult, formData map[string]any, feedProgramID string) {
	var metadata map[string]any
	if formData != nil {
		metadata = map[string]any{
			"form_data":   formData,
			"next_action": extraction.NextAction,
		}
		if feedProgramID != "" {
			metadata["feed_program_id"] = feedProgramID
		}
	}

	if err := s.conversations.AppendMessage(ctx, conversationID, models.RoleUser, prompt, metadata); err != nil {
		s.logger.Error("failed appending user message", zap.String("conversation_id", conversationID), zap.Error(err))
	}
	if err := s.conversations.AppendMessage(ctx, conversationID, models.RoleModel, extraction.Response, metadata); err != nil {
		s.logger.Error("failed appending model message", zap.String("conversation_id", conversationID), zap.Error(err))
	}

	entry := models.FAQEntry{
		Category:  extraction.Category,
		Question:  prompt,
		Answer:    extraction.Response,
		CompanyID: companyID,
		CreatedAt: s.now().UTC(),
	}

	err := s.kb.InsertFAQ(ctx, entry)
	if err != nil {
		err = s.kb.InsertFAQ(ctx, entry)
	}
	if err != nil {
		s.logger.Error("failed mirroring exchange to faq",
			zap.String("conversation_id", conversationID),
			zap.String("category", extraction.Category),
			zap.Error(err))
	}
}

func (s *Service) resolveConversation(ctx context.Context, req TurnRequest) (*models.Conversation, error) {
	if req.ConversationID != "" {
		conversation, err := s.conversations.Get(ctx, req.ConversationID)
		if err != nil {
			return nil, err
		}
		if conversation == nil {
			return nil, fmt.Errorf("%w: conversation %s", fielderr.ErrNotFound, req.ConversationID)
		}
		return conversation, nil
	}
	return s.conversations.GetOrCreate(ctx, req.UserID)
}

// programContext summarizes the farmer's active feed program for the
// extraction prompt.
func (s *Service) programContext(ctx context.Context, farmerID string) string {
	product, err := s.programs.ActiveFeedProduct(ctx, farmerID)
	if err != nil || product == nil {
		return "No active feed program. User needs to start a feed program first."
	}

	return fmt.Sprintf(
		"Active Feed Program Context:\nFeed: %s\nStage: %s\nDays on Feed: %d\nGoal: %s\nAge Range: %d-%d days",
		product.FeedName, product.FeedStage, product.DaysOnFeed, product.FeedGoal,
		product.AgeRangeStart, product.AgeRangeEnd)
}

// mergeFields applies the truthy-only merge rule: extracted values that are
// nil or empty never overwrite or clear a previously collected value. Keys
// outside the form's schema are dropped.
func mergeFields(formData, newFields map[string]any, allowed map[string]struct{}) map[string]any {
	merged := cloneForm(formData)
	for key, value := range newFields {
		if allowed != nil {
			if _, ok := allowed[key]; !ok {
				continue
			}
		}
		if isEmptyValue(value) {
			continue
		}
		merged[key] = value
	}
	return merged
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func cloneForm(form map[string]any) map[string]any {
	cloned := make(map[string]any, len(form))
	for key, value := range form {
		cloned[key] = value
	}
	return cloned
}

// formSummary renders already-collected fields for the extraction prompt.
func formSummary(formData map[string]any) string {
	if len(formData) == 0 {
		return "None yet"
	}

	keys := make([]string, 0, len(formData))
	for key, value := range formData {
		if isEmptyValue(value) {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return "None yet"
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		label := strings.ReplaceAll(key, "_", " ")
		if label != "" {
			label = strings.ToUpper(label[:1]) + label[1:]
		}
		lines = append(lines, fmt.Sprintf("%s: %v", label, formData[key]))
	}
	return strings.Join(lines, "\n")
}

// noProgramReply builds the graceful reply for log intents when no feed
// program is active, with a light Filipino/English heuristic.
func noProgramReply(prompt string, intent Intent) string {
	filipino := false
	lower := strings.ToLower(prompt)
	for _, marker := range []string{" ang ", " ng ", " sa ", " po ", " kasi ", " mga ", " ako ", " mo ", " ko "} {
		if strings.Contains(" "+lower+" ", marker) {
			filipino = true
			break
		}
	}

	if filipino {
		switch intent {
		case IntentHealthLog:
			return "Para ma-log ang health incident, kailangan mo munang mag-start ng feed program. Gusto mo bang magsimula ng bagong program?"
		case IntentPerformanceLog:
			return "Para ma-track ang performance, kailangan mo munang mag-start ng feed program. Gusto mo bang magsimula ng bagong program?"
		default:
			return "Kailangan mo munang mag-start ng feed program para magamit ang feature na ito. Gusto mo bang magsimula ng bagong program?"
		}
	}

	switch intent {
	case IntentHealthLog:
		return "To log health incidents, you need to start a feed program first. Would you like to start a new program?"
	case IntentPerformanceLog:
		return "To track performance, you need to start a feed program first. Would you like to start a new program?"
	default:
		return "You need to start a feed program first to use this feature. Would you like to start a new program?"
	}
}
